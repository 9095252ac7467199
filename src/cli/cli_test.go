package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"price-oracle/src/config"
	"price-oracle/src/logger"
	"price-oracle/src/models"
)

const testConfig = `
name: oracle-test
host: 127.0.0.1
port: 18000
grpc_port: 15051
storage:
  db_type: memory
oracle:
  pairs: [BTCUSD, ETHUSD]
producers:
  active: [producer1, producer2, producer3]
`

func newTestNode(t *testing.T, yaml string) *Node {
	t.Helper()

	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)

	node, err := NewNode(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(node.Close)
	return node
}

// serveControl serves the node's control service over bufconn and points the
// commands at it.
func serveControl(t *testing.T, node *Node) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	go func() { _ = node.Control.Serve(lis) }()
	t.Cleanup(func() { _ = node.Control.Stop() })

	dialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	t.Cleanup(func() { dialOptions = nil })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	pairCaller = config.DefaultSystemAccount
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--grpc-addr", "passthrough:///bufnet"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// -----------------------------------------------------------------------------

func TestParsePairPrices(t *testing.T) {
	data, err := parsePairPrices([]string{"BTCUSD=100.5", "ETHUSD=3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSD": 100.5, "ETHUSD": 3}, data)

	for _, bad := range [][]string{
		{"BTCUSD"},
		{"=100"},
		{"BTCUSD="},
		{"BTCUSD=abc"},
		{"BTCUSD=1", "BTCUSD=2"},
	} {
		_, err := parsePairPrices(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestNewNodeBootstrapsPairs(t *testing.T) {
	node := newTestNode(t, testConfig)

	pairs, err := node.Oracle.ListPairs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, pairs)
	assert.Nil(t, node.Watcher)
	assert.Equal(t, 3, node.Schedule.ActiveProducerCount())
}

func TestNewNodeRejectsTableReferenceWithoutPostgres(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	cfg.Oracle.Pairs = []string{"pg:public.assets.symbol"}

	_, err = NewNode(context.Background(), cfg, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestNewNodeLoadsScheduleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active: [a, b]\nstandby: [c]\n"), 0644))

	node := newTestNode(t, testConfig+"  schedule_file: "+path+"\n")

	require.NotNil(t, node.Watcher)
	assert.True(t, node.Schedule.IsActiveProducer("a"))
	assert.False(t, node.Schedule.IsActiveProducer("producer1"))
	assert.Equal(t, 2, node.Schedule.ActiveProducerCount())
}

func TestNewNodeMissingScheduleFile(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	cfg.Producers.ScheduleFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err = NewNode(context.Background(), cfg, logger.NewNopLogger())
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestControlCommands(t *testing.T) {
	node := newTestNode(t, testConfig)
	serveControl(t, node)

	out, err := run(t, "pairs", "add", "SOLUSD")
	require.NoError(t, err)
	assert.Contains(t, out, "registered SOLUSD")

	out, err = run(t, "pairs", "list")
	require.NoError(t, err)
	var pairs []string
	require.NoError(t, json.Unmarshal([]byte(out), &pairs))
	assert.Equal(t, []string{"BTCUSD", "ETHUSD", "SOLUSD"}, pairs)

	// Two of three producers are short of the majority
	for i, price := range []string{"100", "101"} {
		out, err = run(t, "submit", []string{"producer1", "producer2"}[i], "BTCUSD="+price)
		require.NoError(t, err)
		var result models.MSubmitResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, []string{"BTCUSD"}, result.Deferred)
	}

	out, err = run(t, "submit", "producer3", "BTCUSD=102")
	require.NoError(t, err)
	var result models.MSubmitResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Contains(t, result.Published, "BTCUSD")
	assert.Equal(t, 101.0, result.Published["BTCUSD"].Price)

	out, err = run(t, "price", "BTCUSD")
	require.NoError(t, err)
	var price models.MPublishedPrice
	require.NoError(t, json.Unmarshal([]byte(out), &price))
	assert.Equal(t, 101.0, price.Price)
	assert.Equal(t, []float64{101}, price.PricePoints)

	out, err = run(t, "price")
	require.NoError(t, err)
	var prices []models.MPublishedPrice
	require.NoError(t, json.Unmarshal([]byte(out), &prices))
	assert.Len(t, prices, 1)

	out, err = run(t, "submission", "producer2")
	require.NoError(t, err)
	var sub models.MSubmission
	require.NoError(t, json.Unmarshal([]byte(out), &sub))
	assert.Equal(t, map[string]float64{"BTCUSD": 101}, sub.PairsData)

	out, err = run(t, "status")
	require.NoError(t, err)
	var st models.MOracleStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 3, st.Pairs)
	assert.Equal(t, 1, st.PublishedPairs)
	assert.Equal(t, 3, st.QuorumThreshold)

	out, err = run(t, "schedule", "show")
	require.NoError(t, err)
	var sched models.MProducerSchedule
	require.NoError(t, json.Unmarshal([]byte(out), &sched))
	assert.Equal(t, []string{"producer1", "producer2", "producer3"}, sched.Active)
}

func TestControlCommandErrors(t *testing.T) {
	node := newTestNode(t, testConfig)
	serveControl(t, node)

	_, err := run(t, "pairs", "add", "--caller", "mallory", "XRPUSD")
	assert.Error(t, err)

	_, err = run(t, "submit", "stranger", "BTCUSD=1")
	assert.Error(t, err)

	_, err = run(t, "submit", "producer1", "BTCUSD")
	assert.Error(t, err)

	_, err = run(t, "price", "ETHUSD")
	assert.Error(t, err)

	// No schedule file configured
	_, err = run(t, "schedule", "reload")
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestRunStopsOnCancel(t *testing.T) {
	node := newTestNode(t, `
name: oracle-test
host: 127.0.0.1
port: 18431
grpc_port: 18432
storage:
  db_type: memory
producers:
  active: [producer1]
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop")
	}
}
