package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roessland/gearsync/gs"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configFileSaver writes a refreshed token pair back into the config file,
// in JSON for a .json file and YAML otherwise. Keys it does not own are preserved.
type configFileSaver struct {
	path string
}

func newConfigFileSaver(path string) *configFileSaver {
	return &configFileSaver{path: path}
}

func (s *configFileSaver) SaveCredential(cred gs.Credential) error {
	if s.path == "" {
		return errors.New("no config file path")
	}

	doc := map[string]any{}
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := s.unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", s.path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	doc["client_id"] = cred.ClientID
	doc["client_secret"] = cred.ClientSecret
	doc["access_token"] = cred.AccessToken
	doc["refresh_token"] = cred.RefreshToken
	if !cred.ExpiresAt.IsZero() {
		doc["expires_at"] = cred.ExpiresAt.Unix()
	}

	out, err := s.marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	// Keep the in-process view consistent with the file.
	viper.Set("access_token", cred.AccessToken)
	viper.Set("refresh_token", cred.RefreshToken)
	return nil
}

func (s *configFileSaver) isJSON() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".json")
}

func (s *configFileSaver) unmarshal(data []byte, doc *map[string]any) error {
	if s.isJSON() {
		if len(strings.TrimSpace(string(data))) == 0 {
			return nil
		}
		return json.Unmarshal(data, doc)
	}
	return yaml.Unmarshal(data, doc)
}

func (s *configFileSaver) marshal(doc map[string]any) ([]byte, error) {
	if s.isJSON() {
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	}
	return yaml.Marshal(doc)
}
