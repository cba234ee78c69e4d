package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
environments:
  - id: staging
    name: Staging
    variables:
      - name: baseUrl
        value: https://staging.example.com
      - name: port
        value: 8080
authentications:
  - id: ci
    apiKey: key-1
collections:
  - id: smoke
    applicationId: shop
    name: Smoke
    apis:
      - id: login
        url: "{{baseUrl}}/login"
        method: POST
        headers:
          Accept: application/json
        body:
          user: admin
        order: 1
      - id: profile
        url: "{{baseUrl}}/users/{{response.body.userId}}"
        method: get
        order: 2
schedules:
  - id: nightly
    cron: "0 3 * * *"
    environmentId: staging
    authenticationId: ci
    collections: [smoke]
    emails: [qa@example.com]
    isActive: true
`

func TestParse(t *testing.T) {
	ws, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, ws.Environments, 1)
	env := ws.Environment("Staging")
	require.NotNil(t, env)
	assert.Equal(t, "staging", env.ID)
	require.Len(t, env.Variables, 2)
	assert.Equal(t, "8080", env.Variables[1].Value)

	require.Len(t, ws.Authentications, 1)
	assert.Equal(t, "key-1", ws.Authentications[0].APIKey)

	c := ws.Collection("smoke")
	require.NotNil(t, c)
	assert.Equal(t, "shop", c.ApplicationID)
	require.Len(t, c.APIs, 2)
	assert.Equal(t, map[string]any{"user": "admin"}, c.APIs[0].Body)
	assert.Equal(t, "application/json", c.APIs[0].Headers["Accept"])
	assert.Equal(t, 2, c.APIs[1].Order)

	require.Len(t, ws.Schedules, 1)
	s := ws.Schedules[0]
	assert.Equal(t, "0 3 * * *", s.CronExpression)
	assert.Equal(t, []string{"smoke"}, s.CollectionIDs)
	assert.Equal(t, []string{"qa@example.com"}, s.Emails)
	assert.True(t, s.IsActive)
}

func TestParse_JSON(t *testing.T) {
	doc := `{"collections":[{"id":"c","apis":[{"id":"a","url":"https://x","method":"GET","body":{"k":[1,2]}}]}]}`
	ws, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, ws.Collections, 1)
	assert.Equal(t, map[string]any{"k": []any{1, 2}}, ws.Collections[0].APIs[0].Body)
}

func TestValidate_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		errPart string
	}{
		{
			name:    "unknown top level key",
			doc:     "tests: []",
			errPart: "tests",
		},
		{
			name:    "api without url",
			doc:     "collections:\n  - id: c\n    apis:\n      - id: a\n",
			errPart: "url",
		},
		{
			name:    "bad method",
			doc:     "collections:\n  - id: c\n    apis:\n      - id: a\n        url: https://x\n        method: FETCH\n",
			errPart: "method",
		},
		{
			name:    "schedule without collections",
			doc:     "schedules:\n  - id: s\n    cron: '* * * * *'\n    environmentId: e\n    collections: []\n",
			errPart: "collections",
		},
		{
			name:    "invalid email",
			doc:     "schedules:\n  - id: s\n    cron: '* * * * *'\n    environmentId: e\n    collections: [c]\n    emails: [nope]\n",
			errPart: "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.doc))
			require.Error(t, err)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestValidate_Empty(t *testing.T) {
	assert.NoError(t, Validate([]byte("")))
}

func TestParse_CrossReferences(t *testing.T) {
	doc := `
environments:
  - id: e
  - id: e
collections:
  - id: c
    apis:
      - id: a
        url: https://x
schedules:
  - id: s
    cron: "@hourly"
    environmentId: missing
    authenticationId: nobody
    collections: [c, other]
`
	_, err := Parse([]byte(doc))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 4)
	assert.Contains(t, err.Error(), `duplicate environment id "e"`)
	assert.Contains(t, err.Error(), `unknown environment "missing"`)
	assert.Contains(t, err.Error(), `unknown authentication "nobody"`)
	assert.Contains(t, err.Error(), `unknown collection "other"`)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hitcron.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	ws, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, ws.Path)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestIsWorkspaceFile(t *testing.T) {
	assert.True(t, IsWorkspaceFile("a/b.yaml"))
	assert.True(t, IsWorkspaceFile("b.YML"))
	assert.True(t, IsWorkspaceFile("b.json"))
	assert.False(t, IsWorkspaceFile("b.http"))
}
