package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = "" +
	"source:\n" +
	"  conn_string: postgres://u:p@src:5432/reports\n" +
	"target:\n" +
	"  conn_string: postgres://u:p@tgt:5432/warehouse\n" +
	"tables:\n" +
	"  - schema: sales\n" +
	"    name: orders\n" +
	"    key_columns: [id]\n" +
	"    watermark_column: updated_at\n" +
	"  - schema: sales\n" +
	"    name: customers\n" +
	"    key_columns: [tenant_id, id]\n" +
	"    watermark_column: modified_at\n"

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(validYAML), 0o600))

	cfg, err := loadConfigFile(cfgPath)
	require.NoError(t, err)
	require.Len(t, cfg.Tables, 2)
	assert.Equal(t, "postgres://u:p@src:5432/reports", cfg.Source.ConnString)
	assert.Equal(t, "sales", cfg.Tables[0].Schema)
	assert.Equal(t, []string{"tenant_id", "id"}, cfg.Tables[1].KeyColumns)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfigContent(validYAML, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Staging.Schema)
	assert.Equal(t, "replication_runs", cfg.Staging.MetadataTable)
	assert.Equal(t, int32(4), cfg.Target.MaxConns)
	assert.Nil(t, cfg.Notify)
}

func TestLoadConfigContentJSONAutoDetect(t *testing.T) {
	json := `{
		"source": {"conn_string": "postgres://u:p@src/db"},
		"target": {"conn_string": "postgres://u:p@tgt/db"},
		"tables": [
			{"schema": "sales", "name": "orders", "key_columns": ["id"], "watermark_column": "updated_at"}
		]
	}`
	cfg, err := loadConfigContent(json, "")
	require.NoError(t, err)
	require.Len(t, cfg.Tables, 1)
	assert.Equal(t, "orders", cfg.Tables[0].Name)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("RB_TARGET__CONN_STRING", "postgres://u:p@other:5432/warehouse")

	cfg, err := loadConfigContent(validYAML, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@other:5432/warehouse", cfg.Target.ConnString)
}

func TestLoadConfigMissingTables(t *testing.T) {
	yaml := "" +
		"source:\n" +
		"  conn_string: postgres://u:p@src/db\n" +
		"target:\n" +
		"  conn_string: postgres://u:p@tgt/db\n"
	_, err := loadConfigContent(yaml, "yaml")
	require.Error(t, err)
}

func TestLoadConfigTableMissingKeyColumns(t *testing.T) {
	yaml := "" +
		"source:\n" +
		"  conn_string: postgres://u:p@src/db\n" +
		"target:\n" +
		"  conn_string: postgres://u:p@tgt/db\n" +
		"tables:\n" +
		"  - schema: sales\n" +
		"    name: orders\n" +
		"    watermark_column: updated_at\n"
	_, err := loadConfigContent(yaml, "yaml")
	require.Error(t, err)
}

func TestLoadConfigRejectsUnsafeIdentifier(t *testing.T) {
	yaml := "" +
		"source:\n" +
		"  conn_string: postgres://u:p@src/db\n" +
		"target:\n" +
		"  conn_string: postgres://u:p@tgt/db\n" +
		"tables:\n" +
		"  - schema: sales\n" +
		"    name: \"orders; DROP TABLE orders;--\"\n" +
		"    key_columns: [id]\n" +
		"    watermark_column: updated_at\n"
	_, err := loadConfigContent(yaml, "yaml")
	require.Error(t, err)
}

func TestLoadConfigFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("x = 1"), 0o600))

	_, err := loadConfigFile(cfgPath)
	require.Error(t, err)
	var extErr *UnsupportedExtensionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, ".toml", extErr.Extension)
}

func TestLoadConfigWrapsFailures(t *testing.T) {
	t.Setenv("RB_CONFIG_FILE_PATH", "/nonexistent/config.yaml")

	_, err := LoadConfig()
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := loadConfigFile("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestDescriptors(t *testing.T) {
	cfg, err := loadConfigContent(validYAML, "yaml")
	require.NoError(t, err)

	descs := cfg.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "sales.orders", descs[0].String())
	assert.Equal(t, "sales_customers", descs[1].StagingTable())
}
