package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/bhandras/delaydeck/internal/app"
	"github.com/bhandras/delaydeck/internal/delay"
	"github.com/bhandras/delaydeck/internal/delay/delaytest"
	"github.com/bhandras/delaydeck/internal/obsws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	srv   *Server
	sw    *delaytest.FakeSwitcher
	clock *delaytest.FakeClock
}

func newHarness(t *testing.T, dial delay.Dialer) *harness {
	t.Helper()
	clock := delaytest.NewFakeClock(time.Unix(1_700_000_000, 0))
	sw := delaytest.NewFakeSwitcher(clock)
	sw.AddScene("Live")
	sw.AddScene("Delay")
	sw.AddInput("Cam1", map[string]any{"local_file": "/media/a.mp4"})
	sw.AddInput("Cam2", map[string]any{"local_file": "/media/b.mp4"})
	sw.Place("Delay", "Cam1", false)
	sw.Place("Delay", "Cam2", false)
	if dial == nil {
		dial = sw.Dialer()
	}

	a, err := app.New(context.Background(), app.Options{Dialer: dial, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := New(a, Options{PublicURL: "http://192.168.1.20:4460", Debug: true})
	return &harness{srv: srv, sw: sw, clock: clock}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestStatusStartsDisconnected(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[app.Status](t, rec)
	require.Equal(t, "disconnected", st.Connection)
	require.Equal(t, "idle", st.Delay.StateName)
	require.Equal(t, 4455, st.Port)
}

func TestConnectReturnsInventory(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/api/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[struct {
		Status    app.Status      `json:"status"`
		Inventory delay.Inventory `json:"inventory"`
	}](t, rec)
	require.Equal(t, "connected", resp.Status.Connection)
	require.Equal(t, []string{"Cam1", "Cam2"}, resp.Inventory.Inputs)
	require.Equal(t, []string{"Live", "Delay"}, resp.Inventory.Scenes)

	inv := decode[delay.Inventory](t, h.do(t, http.MethodGet, "/api/inventory", nil))
	require.Equal(t, resp.Inventory, inv)
}

func TestConnectRejectsBadRequests(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/api/connect", map[string]any{"port": 70000})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[map[string]string](t, rec)["error"], "port")

	rec = h.do(t, http.MethodPost, "/api/connect", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectFailureIsBadGateway(t *testing.T) {
	dial := func(context.Context, delay.Endpoint) (delay.Remote, error) {
		return nil, fmt.Errorf("%w: Authentication failed.", obsws.ErrAuthFailed)
	}
	h := newHarness(t, dial)

	rec := h.do(t, http.MethodPost, "/api/connect", map[string]any{"password": "nope"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, decode[map[string]string](t, rec)["error"], "auth failed")

	st := decode[app.Status](t, h.do(t, http.MethodGet, "/api/status", nil))
	require.Equal(t, "error", st.Connection)
	require.NotEmpty(t, st.Error)
}

func TestSettingsRoundTrip(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPut, "/api/settings", map[string]any{
		"port":     4456,
		"password": "hunter2",
		"delay": map[string]any{
			"recordScene":  "Live",
			"delayScene":   "Delay",
			"delayInput":   "Cam1",
			"bridgeInput":  "Cam2",
			"delaySeconds": 45,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "hunter2")

	view := decode[settingsView](t, h.do(t, http.MethodGet, "/api/settings", nil))
	require.Equal(t, 4456, view.Port)
	require.True(t, view.HasPassword)
	require.Equal(t, 45, view.Delay.DelaySeconds)

	// Omitting the password keeps it.
	rec = h.do(t, http.MethodPut, "/api/settings", map[string]any{
		"delay": map[string]any{"delayScene": "Delay", "delaySeconds": 60},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decode[settingsView](t, rec)
	require.True(t, view.HasPassword)
	require.Equal(t, 4456, view.Port)
	require.Equal(t, 60, view.Delay.DelaySeconds)
}

func TestSettingsRejectInvalidDelay(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPut, "/api/settings", map[string]any{
		"delay": map[string]any{"delayScene": "Delay", "delaySeconds": 42},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[map[string]string](t, rec)["error"], "invalid delay")

	view := decode[settingsView](t, h.do(t, http.MethodGet, "/api/settings", nil))
	require.Equal(t, delay.DefaultDelaySeconds, view.Delay.DelaySeconds)
}

func TestActivateDeactivate(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/connect", nil).Code)

	rec := h.do(t, http.MethodPost, "/api/delay/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[app.Status](t, rec)
	require.Equal(t, "active", st.Delay.StateName)
	require.Equal(t, delay.DefaultDelaySeconds, st.Delay.CountdownRemaining)
	require.Equal(t, "Delay", h.sw.Program())

	rec = h.do(t, http.MethodPost, "/api/delay/activate", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/delay/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[app.Status](t, rec)
	require.Equal(t, "idle", st.Delay.StateName)
	require.Equal(t, "Live", h.sw.Program())
}

func TestActivateFailureIsBadGateway(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/connect", nil).Code)
	h.sw.FailOn(obsws.RequestSetCurrentProgramScene, &obsws.RequestError{
		RequestType: obsws.RequestSetCurrentProgramScene, Code: 600, Comment: "No source was found",
	})

	rec := h.do(t, http.MethodPost, "/api/delay/activate", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, decode[map[string]string](t, rec)["error"], "No source was found")
}

func TestDisconnectResetsPanel(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/connect", nil).Code)

	rec := h.do(t, http.MethodPost, "/api/disconnect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "disconnected", decode[app.Status](t, rec).Connection)

	inv := decode[delay.Inventory](t, h.do(t, http.MethodGet, "/api/inventory", nil))
	require.Empty(t, inv.Inputs)
	require.Empty(t, inv.Scenes)
	require.Contains(t, h.do(t, http.MethodGet, "/api/inventory", nil).Body.String(), `"inputs":[]`)
}

func TestRemoteCloseResetsPanel(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/connect", nil).Code)

	h.sw.Drop(fmt.Errorf("switcher exited"))
	require.Eventually(t, func() bool {
		return h.srv.app.Status().Connection == "disconnected"
	}, time.Second, 5*time.Millisecond)

	inv := decode[delay.Inventory](t, h.do(t, http.MethodGet, "/api/inventory", nil))
	require.Empty(t, inv.Inputs)
}

func TestQRCode(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/qr.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	text, err := QRText("http://192.168.1.20:4460")
	require.NoError(t, err)
	require.NotEmpty(t, strings.TrimSpace(text))
}

func TestQRCodeWithoutURL(t *testing.T) {
	a, err := app.New(context.Background(), app.Options{Dialer: delaytest.NewFakeSwitcher(nil).Dialer()})
	require.NoError(t, err)
	srv := New(a, Options{Debug: true})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/qr.png", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/settings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPublicURL(t *testing.T) {
	require.Equal(t, "http://127.0.0.1:4460", PublicURL("127.0.0.1:4460"))
	require.Equal(t, "http://localhost:4460", PublicURL("localhost:4460"))

	u := PublicURL("0.0.0.0:4460")
	require.True(t, strings.HasPrefix(u, "http://"))
	require.True(t, strings.HasSuffix(u, ":4460"))
	require.NotContains(t, u, "0.0.0.0")

	require.Equal(t, "http://[::1]:4460", PublicURL("[::1]:4460"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	h := newHarness(t, nil)

	ln, err := newLocalListener()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func newLocalListener() (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}
