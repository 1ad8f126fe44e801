package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSNotifier(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n := NewSMSNotifier(srv.URL, "sandbox", "key-123")
	require.NoError(t, n.OrderPlaced(context.Background(), sampleOrder()))

	require.NotNil(t, got)
	assert.Equal(t, "key-123", got.Header.Get("apiKey"))
	assert.Equal(t, "sandbox", got.PostForm.Get("username"))
	assert.Equal(t, "0601020304", got.PostForm.Get("to"))
	assert.Contains(t, got.PostForm.Get("message"), "ORD-123456")
	assert.Contains(t, got.PostForm.Get("message"), "2026-10-17")
}

func TestSMSNotifier_NoPhoneSkips(t *testing.T) {
	n := NewSMSNotifier("http://127.0.0.1:0", "sandbox", "key")
	o := sampleOrder()
	o.CustomerPhone = ""

	assert.NoError(t, n.OrderPlaced(context.Background(), o))
}

func TestSMSNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewSMSNotifier(srv.URL, "sandbox", "wrong").OrderPlaced(context.Background(), sampleOrder())
	assert.ErrorContains(t, err, "401")
}

func TestMulti(t *testing.T) {
	ok := &fakeNotifier{}
	failing := &fakeNotifier{err: errors.New("down")}

	err := Multi{failing, ok}.OrderPlaced(context.Background(), sampleOrder())

	assert.Error(t, err)
	assert.Len(t, ok.orders, 1)
	assert.Len(t, failing.orders, 1)
}
