package entropy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c := NewClient("key")
	c.endpoint = ts.URL
	return c
}

func TestNilClientFallsBackToCrypto(t *testing.T) {
	var c *Client
	assert.False(t, c.Enabled())
	assert.Nil(t, NewClient(""))

	seed, source := c.Seed(context.Background())
	assert.Equal(t, "crypto", source)
	assert.Positive(t, seed)
}

func TestSeedFromRandomOrg(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params struct {
				APIKey string `json:"apiKey"`
				N      int    `json:"n"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "generateIntegers", req.Method)
		assert.Equal(t, "key", req.Params.APIKey)
		assert.Equal(t, 2, req.Params.N)
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":[3,5]}},"id":1}`))
	})

	seed, source := c.Seed(context.Background())
	assert.Equal(t, "random.org", source)
	assert.Equal(t, int64(3<<31|5), seed)
}

func TestSeedFallsBackOnAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"quota exceeded"},"id":1}`))
	})

	seed, source := c.Seed(context.Background())
	assert.Equal(t, "crypto", source)
	assert.Positive(t, seed)
}

func TestSeedFallsBackOnShortData(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"random":{"data":[7]}}}`))
	})

	_, err := c.fetch(context.Background())
	assert.Error(t, err)
}

func TestCryptoSeedIsPositive(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Positive(t, CryptoSeed())
	}
}
