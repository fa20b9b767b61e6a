package app

import (
	"bytes"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/motion_gestures/internal/config"
	"github.com/relabs-tech/motion_gestures/internal/detector"
	"github.com/relabs-tech/motion_gestures/internal/imu"
	"github.com/relabs-tech/motion_gestures/internal/sensors"
	"github.com/relabs-tech/motion_gestures/internal/timeutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct{ payload []byte }

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "inertial/gesture" }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mqtt.Client
	mu   sync.Mutex
	sent []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	return fakeToken{}
}

func TestNewGestureEvent(t *testing.T) {
	probs := []float64{0.01, 0.02, 0.96, 0.01}
	ev := NewGestureEvent(detector.GestureRight, probs, t0)

	_, err := uuid.Parse(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "right", ev.Gesture)
	assert.Equal(t, 2, ev.Index)
	assert.Equal(t, 0.96, ev.Confidence())
	assert.Equal(t, t0, ev.Time)
	assert.NoError(t, ev.Validate())

	probs[2] = 0
	assert.Equal(t, 0.96, ev.Probabilities[2], "envelope must own its probabilities")

	other := NewGestureEvent(detector.GestureRight, probs, t0)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestGestureEventJSON(t *testing.T) {
	ev := GestureEvent{
		ID:            "7f1c7a4e-8d7a-4a55-9f0e-3f8f0b9f5c11",
		Gesture:       "around",
		Index:         3,
		Probabilities: []float64{0, 0, 0.02, 0.98},
		Time:          t0,
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "7f1c7a4e-8d7a-4a55-9f0e-3f8f0b9f5c11",
		"gesture": "around",
		"index": 3,
		"probabilities": [0, 0, 0.02, 0.98],
		"time": "2026-03-01T12:00:00Z"
	}`, string(b))
}

func TestGestureEventValidate(t *testing.T) {
	good := NewGestureEvent(detector.GestureLeft, []float64{0, 1, 0, 0}, t0)

	bad := good
	bad.ID = "nope"
	assert.Error(t, bad.Validate())

	bad = good
	bad.Gesture = "jump"
	assert.Error(t, bad.Validate())

	bad = good
	bad.Index = 0
	assert.Error(t, bad.Validate())

	bad = good
	bad.Probabilities = []float64{1}
	assert.Error(t, bad.Validate())
}

func TestPublisherPublishesEnvelope(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, "inertial/gesture", timeutil.NewMockClock(t0), zap.NewNop())

	pub.OnGesture(detector.GestureForward, []float64{0.97, 0.01, 0.01, 0.01})

	require.Len(t, client.sent, 1)
	msg := client.sent[0]
	assert.Equal(t, "inertial/gesture", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)

	var ev GestureEvent
	require.NoError(t, json.Unmarshal(msg.payload, &ev))
	assert.NoError(t, ev.Validate())
	assert.Equal(t, "forward", ev.Gesture)
	assert.Equal(t, t0, ev.Time)
}

func TestListenersFanOutInOrder(t *testing.T) {
	var order []string
	ls := Listeners{
		detector.ListenerFunc(func(detector.Gesture, []float64) { order = append(order, "a") }),
		detector.ListenerFunc(func(detector.Gesture, []float64) { order = append(order, "b") }),
	}
	ls.OnGesture(detector.GestureLeft, nil)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestPublisherUsesConfirmationTime(t *testing.T) {
	client := &fakeClient{}
	// the clock has moved on while the event waited in the queue
	pub := NewPublisher(client, "inertial/gesture", timeutil.NewMockClock(t0.Add(time.Minute)), zap.NewNop())

	confirmed := t0.Add(410 * time.Millisecond)
	Listeners{pub}.OnEvent(detector.Event{
		Gesture:       detector.GestureAround,
		Probabilities: []float64{0.01, 0.01, 0.01, 0.97},
		At:            confirmed,
	})

	require.Len(t, client.sent, 1)
	var ev GestureEvent
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &ev))
	assert.Equal(t, "around", ev.Gesture)
	assert.Equal(t, confirmed, ev.Time)
}

func TestListenersKeepGoingAfterPanic(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, "inertial/gesture", timeutil.NewMockClock(t0), zap.NewNop())
	ls := Listeners{
		detector.ListenerFunc(func(detector.Gesture, []float64) { panic("log sink closed") }),
		pub,
	}

	assert.PanicsWithValue(t, "log sink closed", func() {
		ls.OnGesture(detector.GestureLeft, []float64{0.01, 0.97, 0.01, 0.01})
	})
	assert.Len(t, client.sent, 1)

	assert.Panics(t, func() {
		ls.OnEvent(detector.Event{Gesture: detector.GestureLeft, Probabilities: []float64{0, 1, 0, 0}, At: t0})
	})
	assert.Len(t, client.sent, 2)
}

func TestFormatGesture(t *testing.T) {
	ev := NewGestureEvent(detector.GestureLeft, []float64{0.01, 0.97, 0.01, 0.01}, t0)
	line := FormatGesture(ev)
	assert.True(t, strings.HasPrefix(line, "[GESTURE] "), line)
	assert.Contains(t, line, "LEFT")
	assert.Contains(t, line, "p=0.97")
	assert.True(t, strings.HasSuffix(line, "[0.01 0.97 0.01 0.01]"), line)
}

func TestConsoleHandlerSkipsInvalid(t *testing.T) {
	var out bytes.Buffer
	h := consoleHandler(&out, zap.NewNop())

	h(nil, fakeMessage{payload: []byte("{")})
	h(nil, fakeMessage{payload: []byte(`{"id":"x","gesture":"left","index":1}`)})
	assert.Empty(t, out.String())

	b, err := json.Marshal(NewGestureEvent(detector.GestureAround, []float64{0, 0, 0, 1}, t0))
	require.NoError(t, err)
	h(nil, fakeMessage{payload: b})
	assert.Contains(t, out.String(), "AROUND")
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	for _, b := range img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func TestRenderGesture(t *testing.T) {
	waiting := RenderGesture(GestureEvent{}, false, t0)
	assert.Equal(t, displayWidth*displayHeight/8, len(waiting.Pix))
	assert.Positive(t, litPixels(waiting))

	ev := NewGestureEvent(detector.GestureForward, []float64{1, 0, 0, 0}, t0)
	fresh := RenderGesture(ev, true, t0.Add(time.Second))
	stale := RenderGesture(ev, true, t0.Add(displayHold+time.Second))
	assert.Positive(t, litPixels(fresh))
	assert.NotEqual(t, fresh.Pix, stale.Pix)
	assert.NotEqual(t, fresh.Pix, waiting.Pix)
}

type recordingBus struct {
	addrs []uint16
}

func (b *recordingBus) String() string                  { return "recording" }
func (b *recordingBus) SetSpeed(physic.Frequency) error { return nil }
func (b *recordingBus) Tx(addr uint16, _, _ []byte) error {
	b.addrs = append(b.addrs, addr)
	return nil
}

func TestDisplayUsesConfiguredAddress(t *testing.T) {
	bus := &recordingBus{}
	dev, err := ssd1306.NewI2C(displayBus{Bus: bus, addr: 0x3D}, &ssd1306.DefaultOpts)
	require.NoError(t, err)
	require.NoError(t, dev.Draw(dev.Bounds(), RenderGesture(GestureEvent{}, false, t0), image.Point{}))

	require.NotEmpty(t, bus.addrs)
	for _, a := range bus.addrs {
		assert.Equal(t, uint16(0x3D), a)
	}
}

func TestHubLastAndAPI(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub.Routes(""))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/gesture")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ev := NewGestureEvent(detector.GestureRight, []float64{0, 0, 1, 0}, t0)
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	hub.HandleMessage(nil, fakeMessage{payload: b})
	hub.HandleMessage(nil, fakeMessage{payload: []byte(`{"gesture":"left"}`)})

	resp, err = http.Get(srv.URL + "/api/gesture")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got GestureEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "right", got.Gesture)
}

func TestHubWebsocketBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	first := NewGestureEvent(detector.GestureLeft, []float64{0, 1, 0, 0}, t0)
	hub.Publish(first)

	srv := httptest.NewServer(hub.Routes(""))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/gestures"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent := func() GestureEvent {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev GestureEvent
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	// the latest gesture is replayed on connect
	assert.Equal(t, first.ID, readEvent().ID)

	second := NewGestureEvent(detector.GestureAround, []float64{0, 0, 0, 1}, t0.Add(time.Second))
	hub.Publish(second)
	assert.Equal(t, second.ID, readEvent().ID)

	assert.Equal(t, 1, hub.Clients())
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func testConfig(source string) *config.Config {
	return &config.Config{
		SensorSource:      source,
		MQTTBroker:        "tcp://localhost:1883",
		TopicIMU:          "inertial/imu/left",
		TopicGesture:      "inertial/gesture",
		IMUSPIDevice:      "/dev/spidev6.0",
		IMUCSPin:          "18",
		GravityAlpha:      0.8,
		SerialPort:        "/dev/ttyACM0",
		SerialBaudRate:    115200,
		MockBurstInterval: 3 * time.Second,
		MockBurstGesture:  "left",
		WindowSize:        128,
		GestureDuration:   1280 * time.Millisecond,
		FilterCoef:        20,
		Normalization:     9,
		RiseThreshold:     0.95,
		FallThreshold:     0.9,
		MinSustain:        400 * time.Millisecond,
		Cooldown:          2 * time.Second,
		EventQueueSize:    16,
	}
}

func TestNewSampleSource(t *testing.T) {
	logger := zap.NewNop()

	src, err := NewSampleSource(testConfig(config.SourceMock), nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &sensors.MockSource{}, src)

	src, err = NewSampleSource(testConfig(config.SourceIMU), nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &sensors.IMUSource{}, src)

	src, err = NewSampleSource(testConfig(config.SourceSerial), nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &sensors.SerialSource{}, src)

	_, err = NewSampleSource(testConfig(config.SourceMQTT), nil, logger)
	assert.Error(t, err)
	src, err = NewSampleSource(testConfig(config.SourceMQTT), &fakeClient{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &sensors.MQTTSource{}, src)

	cfg := testConfig(config.SourceMock)
	cfg.MockBurstGesture = "jump"
	_, err = NewSampleSource(cfg, nil, logger)
	assert.Error(t, err)

	_, err = NewSampleSource(testConfig("lidar"), nil, logger)
	assert.Error(t, err)
}

func TestDetectorOptionsBuildValidDetector(t *testing.T) {
	cfg := testConfig(config.SourceMock)
	src, err := NewSampleSource(cfg, nil, zap.NewNop())
	require.NoError(t, err)

	det, err := detector.New(src, staticClassifier{}, Listeners{}, DetectorOptions(cfg, zap.NewNop())...)
	require.NoError(t, err)
	assert.False(t, det.IsRunning())

	cfg.FallThreshold = 0.99
	_, err = detector.New(src, staticClassifier{}, Listeners{}, DetectorOptions(cfg, zap.NewNop())...)
	assert.Error(t, err)
}

type staticClassifier struct{}

func (staticClassifier) Init() error { return nil }
func (staticClassifier) Classify([]float64) ([]float64, error) {
	return make([]float64, detector.NumGestures), nil
}

func TestPrintListener(t *testing.T) {
	var out bytes.Buffer
	l := printListener(&out, timeutil.NewMockClock(t0))
	l.OnGesture(detector.GestureRight, []float64{0, 0.01, 0.98, 0.01})
	assert.Contains(t, out.String(), "RIGHT")
	assert.Contains(t, out.String(), "p=0.98")

	out.Reset()
	detector.Notify(l, detector.Event{Gesture: detector.GestureLeft, Probabilities: []float64{0, 1, 0, 0}, At: t0})
	assert.Contains(t, out.String(), "LEFT")
}

func TestMockIMUReadingAddsGravity(t *testing.T) {
	raw := mockIMUReading(imu.Sample{X: imu.StandardGravity / 2}, 0)
	assert.Equal(t, "mock", raw.Source)
	assert.Equal(t, int16(8192), raw.Ax)
	assert.Equal(t, int16(16384), raw.Az)

	// round trip through the raw counts
	s := raw.AccelMS2(0)
	assert.InDelta(t, imu.StandardGravity/2, s.X, 1e-3)
	assert.InDelta(t, imu.StandardGravity, s.Z, 1e-3)
}
