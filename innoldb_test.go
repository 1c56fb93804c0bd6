package innoldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nickyhof/innoldb/config"
	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runWithBothBackends runs testFunc against a memory ledger and a local
// ledger journaled on disk.
func runWithBothBackends(t *testing.T, testFunc func(t *testing.T, instance *Instance)) {
	t.Run("Memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Backend = config.BackendMemory

		instance, err := Open(context.Background(), cfg, nil)
		require.NoError(t, err)
		defer instance.Close(context.Background())
		testFunc(t, instance)
	})

	t.Run("Local", func(t *testing.T) {
		cfg := config.Default()
		cfg.Backend = config.BackendLocal
		cfg.DataDir = t.TempDir()

		instance, err := Open(context.Background(), cfg, nil)
		require.NoError(t, err)
		defer instance.Close(context.Background())
		testFunc(t, instance)
	})
}

func TestDocumentWorkflow(t *testing.T) {
	runWithBothBackends(t, func(t *testing.T, instance *Instance) {
		ctx := context.Background()

		employees, err := instance.Query(ctx, "employees")
		require.NoError(t, err)

		tables, err := instance.Tables(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"employees"}, tables)

		doc, err := employees.Save(ctx, core.NewDocument("employees", "id", map[string]any{
			"team":     "InnoLab",
			"location": "Maryland",
		}))
		require.NoError(t, err)
		id := doc.ID()
		require.NotEmpty(t, id)

		found, err := employees.FindBy(ctx, core.KeyValue{Key: "id", Value: id})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "InnoLab", found[0].Fields()["team"])

		_, err = employees.Update(ctx, id, core.KeyValue{Key: "location", Value: "Florida"})
		require.NoError(t, err)

		strands, err := employees.Strands(ctx, id)
		require.NoError(t, err)
		require.Len(t, strands, 2)
		assert.Equal(t, "Maryland", strands[0].Fields()["location"])
		assert.Equal(t, "Florida", strands[1].Fields()["location"])

		// A second Query on the same table does not recreate it.
		again, err := instance.Query(ctx, "employees")
		require.NoError(t, err)
		all, err := again.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestLikeIgnoreCase(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.LikeIgnoreCase = true

	instance, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()

	q, err := instance.Query(ctx, "employees")
	require.NoError(t, err)
	_, err = q.Save(ctx, core.NewDocument("", "", map[string]any{"team": "Innovation Lab"}))
	require.NoError(t, err)

	docs, err := q.FindLike(ctx, core.KeyValue{Key: "team", Value: "LAB"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestLocalBackendPersists(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Backend = config.BackendLocal
	cfg.DataDir = t.TempDir()

	instance, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	q, err := instance.Query(ctx, "employees")
	require.NoError(t, err)
	doc, err := q.Save(ctx, core.NewDocument("", "", map[string]any{"team": "InnoLab"}))
	require.NoError(t, err)
	require.NoError(t, instance.Close(ctx))

	reopened, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	q, err = reopened.Query(ctx, "employees")
	require.NoError(t, err)

	found, err := q.Get(ctx, doc.ID())
	require.NoError(t, err)
	assert.Equal(t, "InnoLab", found.Fields()["team"])
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "dynamo"

	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestAWSOptions(t *testing.T) {
	cfg := config.Default()
	cfg.AWS.Region = "us-east-1"
	cfg.AWS.Profile = "lab"
	cfg.AWS.QLDBEndpoint = "http://localhost:4566"

	assert.Equal(t, "us-east-1", AWSOptions(cfg).Region)
	assert.Equal(t, "lab", AWSOptions(cfg).Profile)
	assert.Equal(t, "http://localhost:4566", AWSOptions(cfg).Endpoint)
}

func TestStaticCredentialsFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")

	env := map[string]string{
		"BACKEND":               "memory",
		"AWS_REGION":            "us-east-1",
		"AWS_ACCESS_KEY_ID":     "AKIDEXAMPLE",
		"AWS_SECRET_ACCESS_KEY": "secret",
	}
	cfg, err := config.Load(config.LoadOptions{EnvFiles: []string{}, Lookup: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}})
	require.NoError(t, err)

	awsCfg, err := ps.LoadAWSConfig(context.Background(), AWSOptions(cfg))
	require.NoError(t, err)
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)

	instance, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer instance.Close(context.Background())
	assert.Equal(t, "AKIDEXAMPLE", instance.RemoteOptions().AWS.AccessKeyID)
}
