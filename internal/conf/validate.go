package conf

import (
	"fmt"
	"strconv"
)

// ValidateSettings checks the loaded settings for values the rest of the
// application cannot work with. It returns the first problem found.
func ValidateSettings(settings *Settings) error {
	if err := validateStorage(&settings.Ontology); err != nil {
		return err
	}
	if err := validateWebServer(settings); err != nil {
		return err
	}
	if err := validateSearch(&settings.Search); err != nil {
		return err
	}
	if err := validateLog(&settings.Main.Log); err != nil {
		return err
	}
	return nil
}

func validateLog(log *LogConfig) error {
	if log.Enabled && log.Path == "" {
		return fmt.Errorf("main.log.path must not be empty when file logging is enabled")
	}
	return nil
}

func validateStorage(ontology *OntologyConfig) error {
	switch ontology.Storage {
	case StorageFlatFile, StorageRelational:
	default:
		return fmt.Errorf("ontology.storage must be %q or %q, got %q",
			StorageFlatFile, StorageRelational, ontology.Storage)
	}
	if ontology.FlatFilePath == "" {
		return fmt.Errorf("ontology.flatfilepath must not be empty")
	}
	if ontology.SQLitePath == "" {
		return fmt.Errorf("ontology.sqlitepath must not be empty")
	}
	return nil
}

func validateWebServer(settings *Settings) error {
	if !settings.WebServer.Enabled {
		return nil
	}
	port, err := strconv.Atoi(settings.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port must be a valid port number, got %q", settings.WebServer.Port)
	}
	return nil
}

func validateSearch(search *SearchConfig) error {
	if search.Threshold < 0 || search.Threshold > 1 {
		return fmt.Errorf("search.threshold must be within [0, 1], got %v", search.Threshold)
	}
	if search.DefaultLimit < 0 {
		return fmt.Errorf("search.defaultlimit must not be negative, got %d", search.DefaultLimit)
	}
	if search.MaxConcurrency < 0 {
		return fmt.Errorf("search.maxconcurrency must not be negative, got %d", search.MaxConcurrency)
	}
	return nil
}
