package rbac

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const yamlCatalog = `modules:
  - key: posts
    description: Blog Posts
actions:
  - key: read
    label: Read
special:
  - module: posts
    action: publish
    description: Publish posts
roles:
  - name: admin
    is_system: true
    grant_all: true
  - name: reader
    grants:
      - module: posts
        action: read
bootstrap:
  user_id: 1
  role: admin
`

const tomlCatalog = `[[modules]]
key = "posts"
description = "Blog Posts"

[[actions]]
key = "read"
label = "Read"

[[roles]]
name = "admin"
grant_all = true

[[roles]]
name = "reader"
grants = [{ module = "posts", action = "read" }]

[bootstrap]
user_id = 1
role = "admin"
`

const jsonCatalog = `{
  "modules": [{"key": "posts", "description": "Blog Posts"}],
  "actions": [{"key": "read", "label": "Read"}],
  "roles": [
    {"name": "admin", "grant_all": true},
    {"name": "reader", "grants": [{"module": "posts", "action": "read"}]}
  ],
  "bootstrap": {"user_id": 1, "role": "admin"}
}`

func writeCatalog(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCatalogFormats(t *testing.T) {
	files := map[string]string{
		"catalog.yaml": yamlCatalog,
		"catalog.toml": tomlCatalog,
		"catalog.json": jsonCatalog,
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			catalog, err := LoadCatalog(writeCatalog(t, name, body))
			require.NoError(t, err)
			require.Len(t, catalog.Roles, 2)
			require.Equal(t, Bootstrap{UserID: 1, Role: "admin"}, catalog.Bootstrap)

			perms := catalog.Permissions()
			require.Equal(t, "Read blog posts", perms[0].Description)

			reader, ok := catalog.Role("reader")
			require.True(t, ok)
			require.Equal(t, []PermissionKey{{Module: "posts", Action: "read"}}, reader.Grants)
		})
	}
}

func TestLoadCatalogRejectsUnknownKeys(t *testing.T) {
	files := map[string]string{
		"catalog.yml":  yamlCatalog + "extra: true\n",
		"catalog.toml": "colour = \"red\"\n" + tomlCatalog,
		"catalog.json": `{"modules": [], "colour": "red"}`,
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalog(t, name, body))
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestLoadCatalogValidates(t *testing.T) {
	body := `{"modules": [{"key": "posts", "description": "Posts"}], "actions": [{"key": "read", "label": "Read"}],
"roles": [{"name": "reader"}], "bootstrap": {"user_id": 1, "role": "admin"}}`
	_, err := LoadCatalog(writeCatalog(t, "catalog.json", body))
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := LoadCatalog(writeCatalog(t, "catalog.xml", "<catalog/>"))
	require.ErrorContains(t, err, "unsupported catalog format")

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
