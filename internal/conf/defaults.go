// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "semquery")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/semquery.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("ontology.storage", StorageFlatFile)
	viper.SetDefault("ontology.flatfilepath", "data/concepts.json")
	viper.SetDefault("ontology.sqlitepath", "data/semquery.db")

	viper.SetDefault("search.defaultmodel", "word2vec")
	viper.SetDefault("search.defaultlimit", 10)
	viper.SetDefault("search.threshold", 0.5)
	viper.SetDefault("search.cachettlsecs", 60)
	viper.SetDefault("search.maxconcurrency", 8)

	viper.SetDefault("embedding.host", "http://localhost:11434/v1")
	viper.SetDefault("embedding.model", "nomic-embed-text")
	viper.SetDefault("embedding.corpuspath", "data/corpus.json")
}
