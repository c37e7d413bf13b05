package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		InstanceID:       "test-instance-abc",
		BaseDir:          "/home/user/.local/share/usdt",
		LogDir:           "/home/user/.local/share/usdt/log",
		Timezone:         "Asia/Shanghai",
		RegistrationCode: "letmein",
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: "/evidence/vault"},
			{Type: "s3", Name: "remote", S3Bucket: "evidence", S3Region: "auto", S3Endpoint: "https://r2.example.com"},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/usdt/keys/usdt.pub",
			PrivateKeyPath: "/home/user/.local/share/usdt/keys/usdt.key",
		},
		Database: DatabaseConfig{Type: "postgres", URL: "postgres://localhost/usdt"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.InstanceID != original.InstanceID {
		t.Errorf("InstanceID = %q, want %q", got.InstanceID, original.InstanceID)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Timezone != "Asia/Shanghai" {
		t.Errorf("Timezone = %q, want %q", got.Timezone, "Asia/Shanghai")
	}
	if got.RegistrationCode != "letmein" {
		t.Errorf("RegistrationCode = %q, want %q", got.RegistrationCode, "letmein")
	}
	if len(got.Vaults) != 2 {
		t.Fatalf("len(Vaults) = %d, want 2", len(got.Vaults))
	}
	if got.Vaults[0].FSVaultRoot != "/evidence/vault" {
		t.Errorf("Vault.FSVaultRoot = %q, want %q", got.Vaults[0].FSVaultRoot, "/evidence/vault")
	}
	if got.Vaults[1].S3Endpoint != "https://r2.example.com" {
		t.Errorf("Vault.S3Endpoint = %q, want %q", got.Vaults[1].S3Endpoint, "https://r2.example.com")
	}
	if got.Encryption.Type != "age" {
		t.Errorf("Encryption.Type = %q, want %q", got.Encryption.Type, "age")
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
	if got.Database.Type != "postgres" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "postgres")
	}
	if got.Database.URL != original.Database.URL {
		t.Errorf("Database.URL = %q, want %q", got.Database.URL, original.Database.URL)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("inst-1", "/data/usdt")

	if cfg.InstanceID != "inst-1" {
		t.Errorf("InstanceID = %q, want %q", cfg.InstanceID, "inst-1")
	}
	if cfg.LogDir != "/data/usdt/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/usdt/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/usdt/db" {
		t.Errorf("Database = %+v, want sqlite in /data/usdt/db", cfg.Database)
	}
	if len(cfg.Vaults) != 1 || cfg.Vaults[0].FSVaultRoot != "/data/usdt/vault" {
		t.Errorf("Vaults = %+v, want one filesystem vault at /data/usdt/vault", cfg.Vaults)
	}
	if cfg.Encryption.Type != "none" {
		t.Errorf("Encryption.Type = %q, want %q", cfg.Encryption.Type, "none")
	}
	if cfg.Encryption.PublicKeyPath != "/data/usdt/keys/usdt.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/usdt/keys/usdt.pub")
	}
}

func TestConfig_Location(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     string
		wantErr  bool
	}{
		{"empty is local", "", "Local", false},
		{"explicit local", "Local", "Local", false},
		{"iana zone", "Asia/Shanghai", "Asia/Shanghai", false},
		{"utc", "UTC", "UTC", false},
		{"invalid", "Mars/Olympus", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Timezone: tt.timezone}
			loc, err := cfg.Location()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Location() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Location() error = %v", err)
			}
			if loc.String() != tt.want {
				t.Errorf("Location() = %q, want %q", loc.String(), tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "usdt.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "usdt.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "usdt.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.InstanceID != "read-test" {
			t.Errorf("InstanceID = %q, want %q", got.InstanceID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/usdt.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
