package robotsim

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, s *Simulator, path, body string) (int, State) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var st State
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusConflict {
		require.NoError(t, json.Unmarshal(raw, &st))
	}
	return resp.StatusCode, st
}

func TestStatusEndpoint(t *testing.T) {
	s := New("rb-01", nil)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "IDLE", body["status"])
	assert.Equal(t, 100.0, body["battery_level"])
	assert.Contains(t, body, "position")
}

func TestMoveAndStop(t *testing.T) {
	s := New("rb-01", nil)

	code, st := post(t, s, "/move", `{"speed":0.5}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusMoving, st.Status)

	s.Tick(time.Second)
	assert.Greater(t, s.State().Position.X, 0.0)
	assert.InDelta(t, 99.9, s.State().BatteryLevel, 1e-9)

	code, st = post(t, s, "/stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusIdle, st.Status)
}

func TestSafetyRefusesMotion(t *testing.T) {
	t.Run("low battery", func(t *testing.T) {
		s := New("rb-01", nil)
		s.SetBattery(5)
		code, st := post(t, s, "/move", `{"speed":0.5}`)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, StatusIdle, st.Status)

		// neutral commands are still accepted
		code, _ = post(t, s, "/turn", `{"speed":0}`)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("fault", func(t *testing.T) {
		s := New("rb-01", nil)
		s.Fault("motor overheat")
		code, st := post(t, s, "/turn", `{"speed":0.3}`)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "motor overheat", st.ErrorMessage)

		s.Fault("")
		code, _ = post(t, s, "/turn", `{"speed":0.3}`)
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestEmergencyStopLatches(t *testing.T) {
	s := New("rb-01", nil)
	post(t, s, "/move", `{"speed":1}`)

	code, st := post(t, s, "/emergency_stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusEmergencyStop, st.Status)

	code, _ = post(t, s, "/move", `{"speed":1}`)
	assert.Equal(t, http.StatusConflict, code)
	_, st = post(t, s, "/turn", `{"speed":0}`)
	assert.Equal(t, StatusEmergencyStop, st.Status)

	_, st = post(t, s, "/stop", "")
	assert.Equal(t, StatusIdle, st.Status)
}

func TestArmSteps(t *testing.T) {
	s := New("rb-01", nil)
	_, st := post(t, s, "/arm", `{"direction":"up"}`)
	assert.Equal(t, 5.0, st.ArmHeight)
	_, st = post(t, s, "/arm", `{"direction":"down"}`)
	_, st = post(t, s, "/arm", `{"direction":"down"}`)
	assert.Equal(t, 0.0, st.ArmHeight)
	_, st = post(t, s, "/arm", `{"direction":"forward"}`)
	assert.Equal(t, 5.0, st.ArmDistance)

	code, _ := post(t, s, "/arm", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOfflineAnswers503(t *testing.T) {
	s := New("rb-01", nil)
	s.SetOffline(true)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 0, s.Commands())
}

func TestLowBatteryHaltsMotion(t *testing.T) {
	s := New("rb-01", nil)
	s.SetBattery(10.05)
	require.True(t, s.Move(0.4))
	s.Tick(time.Second)
	assert.Equal(t, StatusIdle, s.State().Status)
}
