package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/glyphwheel/internal/config"
	"github.com/lazypower/glyphwheel/internal/engine"
	"github.com/lazypower/glyphwheel/internal/server"
	"github.com/lazypower/glyphwheel/internal/store"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultEngine()
	cfg.Seed = 3
	eng := engine.New(cfg)
	eng.SeedCore()
	eng.SetSink(db)
	t.Cleanup(eng.Stop)

	ts := httptest.NewServer(server.New(eng, db, "test", server.Options{}))
	t.Cleanup(ts.Close)
	return New(ts.URL + "/")
}

func TestNewURL(t *testing.T) {
	t.Setenv("GLYPHWHEEL_URL", "")
	assert.Equal(t, DefaultServerURL, New("").URL())

	t.Setenv("GLYPHWHEEL_URL", "http://example:1234")
	assert.Equal(t, "http://example:1234", New("").URL())
	assert.Equal(t, "http://other:1", New("http://other:1/").URL())
}

func TestHealthy(t *testing.T) {
	c := testClient(t)
	assert.True(t, c.Healthy())

	assert.False(t, New("http://127.0.0.1:1").Healthy())
}

func TestStatusAndStress(t *testing.T) {
	c := testClient(t)

	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, 4, st.NodeCount)

	_, err = c.AddNode(AddNodeRequest{Name: "wanderer", Archetype: "mediator"})
	require.NoError(t, err)

	rep, err := c.Stress(0.6, 5)
	require.NoError(t, err)
	assert.Equal(t, engine.ResultCompleted, rep.Result)
	assert.Equal(t, 5, rep.Cycles)

	rep, err = c.Stress(0.6, 5)
	require.NoError(t, err, "refusal is not a transport error")
	assert.True(t, rep.Refused())
	assert.Equal(t, engine.ReasonCooldown, rep.Reason)
	assert.Positive(t, rep.RetryAfter)
}

func TestRecoverAndRecalibrate(t *testing.T) {
	c := testClient(t)

	rep, err := c.Recover(3)
	require.NoError(t, err)
	assert.Equal(t, engine.OpRecovery, rep.Operation)

	rep, err = c.Recalibrate(2)
	require.NoError(t, err)
	assert.Equal(t, engine.OpRecalibrate, rep.Operation)
}

func TestAddNodeErrors(t *testing.T) {
	c := testClient(t)

	s := 0.4
	n, err := c.AddNode(AddNodeRequest{Name: "echo", Stability: &s})
	require.NoError(t, err)
	assert.Equal(t, 0.4, n.Stability)

	_, err = c.AddNode(AddNodeRequest{Name: "echo"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.Code)

	_, err = c.AddNode(AddNodeRequest{Name: "x", Kind: "eternal"})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Message, "unknown kind")
}

func TestSignal(t *testing.T) {
	c := testClient(t)

	v, err := c.Signal("BTC", 10)
	require.NoError(t, err)
	assert.True(t, v.Created)
	assert.InDelta(t, 0.57, v.Stability, 1e-9)
	assert.Equal(t, "uptrend", v.Trend)

	_, err = c.Signal("RootVerse", 10)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.Code)
}

func TestGhostsAndSnapshots(t *testing.T) {
	c := testClient(t)

	ghosts, err := c.Ghosts(false, 0)
	require.NoError(t, err)
	assert.Empty(t, ghosts)

	ghosts, err = c.Ghosts(true, 10)
	require.NoError(t, err)
	assert.Empty(t, ghosts)

	id, err := c.SaveSnapshot()
	require.NoError(t, err)
	assert.Positive(t, id)

	snaps, err := c.Snapshots(5)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, id, snaps[0].ID)
	assert.Equal(t, 4, snaps[0].NodeCount)
}

func TestPatternAndPredict(t *testing.T) {
	c := testClient(t)

	_, err := c.Signal("ETH", -20)
	require.NoError(t, err)
	_, err = c.Signal("BTC", -5)
	require.NoError(t, err)

	n, err := c.CorrelatePattern("crypto", "ETH", "BTC", 0.7)
	require.NoError(t, err)
	assert.Equal(t, engine.KindPattern, n.Kind)
	assert.Equal(t, 2, n.LinkCount)

	p, err := c.Predict("ETH")
	require.NoError(t, err)
	assert.Equal(t, engine.Bearish, p.Direction)
	assert.InDelta(t, 0.64+0.3*0.7, p.Confidence, 1e-9)

	_, err = c.Predict("nope")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}
