package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-helpdesk/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 750000, cfg.AttachmentMaxBytes)
	assert.Equal(t, 10*time.Second, cfg.TokenReveal)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, models.DefaultCatalog, cfg.Categories)
	assert.Empty(t, cfg.S3.Bucket)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("STUDENT_EMAIL_DOMAINS", "Student.Example.ac.id, mhs.example.ac.id")
	t.Setenv("ATTACHMENT_MAX_BYTES", "1024")
	t.Setenv("S3_BUCKET", "helpdesk-attachments")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"student.example.ac.id", "mhs.example.ac.id"}, cfg.StudentDomains)
	assert.Equal(t, 1024, cfg.AttachmentMaxBytes)
	assert.Equal(t, "helpdesk-attachments", cfg.S3.Bucket)
}

func TestLoadCategoriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helpdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_port: "7070"
categories:
  akademik: [nilai, krs]
  fasilitas: [toilet]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.NoError(t, cfg.Categories.Validate("akademik", "krs"))
	assert.Error(t, cfg.Categories.Validate("keuangan", "ukt"))
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadRequiresSecretOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("SESSION_SECRET", "s3cret")
	_, err = Load("")
	assert.NoError(t, err)
}
