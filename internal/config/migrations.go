package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/mediacord/internal/migrate"
)

func init() {
	migrate.Config.Register(migrate.Migration{
		Version:     2,
		Description: "move [server] into the [[servers]] list",
		Upgrade:     upgradeSingleServer,
	})
}

// upgradeSingleServer rewrites a version 1 file, which held one server in a
// [server] table, into the version 2 layout. The old server becomes the
// selected entry. A [server] table without an address is dropped.
func upgradeSingleServer(data []byte) ([]byte, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse v1 config: %w", err)
	}

	if legacy, ok := doc["server"].(map[string]any); ok {
		delete(doc, "server")
		if addr, _ := legacy["address"].(string); addr != "" {
			legacy["selected"] = true
			if _, ok := legacy["id"]; !ok {
				// The ID is refreshed from the server on the next login.
				legacy["id"] = addr
			}
			servers, _ := doc["servers"].([]map[string]any)
			doc["servers"] = append(servers, legacy)
		}
	}
	doc["version"] = 2

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode v2 config: %w", err)
	}
	return buf.Bytes(), nil
}
