package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/ini.v1"
)

// RemoteDef is one remote section of an rclone-style INI file.
type RemoteDef struct {
	Name string
	Type string

	// Direct remotes of type s3 are listed straight from the bucket store
	// instead of through the rc endpoint.
	Direct    bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// LoadRemotes reads remote definitions from an INI file. A missing file
// yields no remotes.
func LoadRemotes(path string) ([]RemoteDef, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load remotes from %s: %w", path, err)
	}

	var remotes []RemoteDef
	for _, section := range cfg.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		remotes = append(remotes, RemoteDef{
			Name:      name,
			Type:      section.Key("type").String(),
			Direct:    section.Key("direct").MustBool(false),
			Endpoint:  section.Key("endpoint").String(),
			Region:    section.Key("region").MustString("us-east-1"),
			AccessKey: section.Key("access_key_id").String(),
			SecretKey: section.Key("secret_access_key").String(),
			PathStyle: section.Key("force_path_style").MustBool(true),
		})
	}

	sort.Slice(remotes, func(i, j int) bool { return remotes[i].Name < remotes[j].Name })
	return remotes, nil
}
