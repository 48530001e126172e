package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/mindwell/internal/fsm"
	"github.com/rbright/mindwell/internal/gateway"
	"github.com/rbright/mindwell/internal/screening"
	"github.com/stretchr/testify/require"
)

const testSettle = 20 * time.Millisecond

func newTestController(deps Dependencies) *Controller {
	return NewController(nil, Config{AgentID: "agent-123", SettleDelay: testSettle}, deps)
}

func TestConnectRequiresAgentID(t *testing.T) {
	for _, agentID := range []string{"", "   ", "your_agent_id_here"} {
		transport := &fakeTransport{}
		indicator := &fakeIndicator{}
		ctrl := NewController(nil, Config{AgentID: agentID}, Dependencies{Transport: transport, Indicator: indicator})

		err := ctrl.Connect(context.Background())
		require.ErrorIs(t, err, ErrConfiguration)
		require.Equal(t, fsm.PhaseIdle, ctrl.Phase())
		require.EqualValues(t, 0, transport.starts.Load())
		require.Equal(t, []string{noticeText(ErrConfiguration)}, indicator.errorTexts())
	}
}

func TestConnectSettlesIntoListening(t *testing.T) {
	transport := &fakeTransport{}
	mic := &fakeMicrophone{}
	indicator := &fakeIndicator{}
	ctrl := newTestController(Dependencies{Transport: transport, Microphone: mic, Indicator: indicator})

	require.NoError(t, ctrl.Connect(context.Background()))
	require.Equal(t, fsm.PhaseSyncing, ctrl.Phase())

	waitForPhase(t, ctrl, fsm.PhaseListening)
	require.EqualValues(t, 1, transport.starts.Load())
	require.EqualValues(t, 1, mic.opens.Load())

	cfg := transport.lastConfig()
	require.Equal(t, "agent-123", cfg.AgentID)
	require.NotNil(t, cfg.Audio)
	require.NotNil(t, cfg.Tools)
	require.Equal(t, []fsm.Phase{fsm.PhaseConnecting, fsm.PhaseSyncing, fsm.PhaseListening}, indicator.phaseHistory())
}

func TestConnectMicrophoneDeniedKeepsPhase(t *testing.T) {
	transport := &fakeTransport{}
	indicator := &fakeIndicator{}
	ctrl := newTestController(Dependencies{
		Transport:  transport,
		Microphone: &fakeMicrophone{openErr: errors.New("access denied")},
		Indicator:  indicator,
	})

	err := ctrl.Connect(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Equal(t, fsm.PhaseIdle, ctrl.Phase())
	require.EqualValues(t, 0, transport.starts.Load())
	require.Empty(t, indicator.phaseHistory())
	require.Len(t, indicator.errorTexts(), 1)
}

func TestConnectTransportFailureThenRetry(t *testing.T) {
	transport := &fakeTransport{}
	transport.startErr.Store(errPointer(errors.New("handshake refused")))
	mic := &fakeMicrophone{}
	ctrl := newTestController(Dependencies{Transport: transport, Microphone: mic})

	err := ctrl.Connect(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	require.Contains(t, err.Error(), "handshake refused")
	require.Equal(t, fsm.PhaseFailed, ctrl.Phase())
	require.EqualValues(t, 1, mic.closes.Load())

	transport.startErr.Store(nil)
	require.NoError(t, ctrl.Connect(context.Background()))
	waitForPhase(t, ctrl, fsm.PhaseListening)
	require.EqualValues(t, 2, transport.starts.Load())
}

func TestConnectReentrancyGuard(t *testing.T) {
	release := make(chan struct{})
	transport := &fakeTransport{block: release}
	indicator := &fakeIndicator{}
	ctrl := newTestController(Dependencies{Transport: transport, Indicator: indicator})

	done := make(chan error, 1)
	go func() { done <- ctrl.Connect(context.Background()) }()
	waitForPhase(t, ctrl, fsm.PhaseConnecting)

	require.ErrorIs(t, ctrl.Connect(context.Background()), ErrConnectInFlight)
	resp := ctrl.Handle(context.Background(), ipcRequest("connect"))
	require.False(t, resp.OK)
	require.Equal(t, ErrConnectInFlight.Error(), resp.Error)

	close(release)
	require.NoError(t, <-done)
	waitForPhase(t, ctrl, fsm.PhaseListening)

	require.EqualValues(t, 1, transport.starts.Load())
	syncing := 0
	for _, phase := range indicator.phaseHistory() {
		if phase == fsm.PhaseSyncing {
			syncing++
		}
	}
	require.Equal(t, 1, syncing)
}

func TestConnectRejectedFromDisconnected(t *testing.T) {
	ctrl := newTestController(Dependencies{Transport: &fakeTransport{}})
	require.NoError(t, ctrl.Connect(context.Background()))
	require.NoError(t, ctrl.Disconnect(context.Background()))

	err := ctrl.Connect(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid transition")
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())
}

func TestDisconnectDuringSyncingCancelsSettle(t *testing.T) {
	transport := &fakeTransport{}
	mic := &fakeMicrophone{}
	ctrl := NewController(nil, Config{AgentID: "agent", SettleDelay: 60 * time.Millisecond}, Dependencies{
		Transport:  transport,
		Microphone: mic,
	})

	require.NoError(t, ctrl.Connect(context.Background()))
	require.Equal(t, fsm.PhaseSyncing, ctrl.Phase())
	require.NoError(t, ctrl.Disconnect(context.Background()))
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())

	time.Sleep(120 * time.Millisecond)
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())
	require.EqualValues(t, 1, transport.ends.Load())
	require.EqualValues(t, 1, mic.closes.Load())
}

func TestDisconnectWhileConnecting(t *testing.T) {
	release := make(chan struct{})
	transport := &fakeTransport{block: release}
	ctrl := newTestController(Dependencies{Transport: transport})

	done := make(chan error, 1)
	go func() { done <- ctrl.Connect(context.Background()) }()
	waitForPhase(t, ctrl, fsm.PhaseConnecting)

	require.NoError(t, ctrl.Disconnect(context.Background()))
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())

	close(release)
	require.Error(t, <-done)
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())

	time.Sleep(3 * testSettle)
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())
}

func TestDisconnectNoopWhenNotConnected(t *testing.T) {
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport})

	require.NoError(t, ctrl.Disconnect(context.Background()))
	require.Equal(t, fsm.PhaseIdle, ctrl.Phase())
	require.EqualValues(t, 0, transport.ends.Load())
}

func TestDisconnectEndFailureMovesToFailed(t *testing.T) {
	transport := &fakeTransport{endErr: errors.New("close failed")}
	ctrl := newTestController(Dependencies{Transport: transport})
	require.NoError(t, ctrl.Connect(context.Background()))
	waitForPhase(t, ctrl, fsm.PhaseListening)

	err := ctrl.Disconnect(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, fsm.PhaseFailed, ctrl.Phase())
}

func TestModeChangesDriveListeningAndSpeaking(t *testing.T) {
	transport := &fakeTransport{}
	ctrl := NewController(nil, Config{AgentID: "agent", SettleDelay: 40 * time.Millisecond}, Dependencies{Transport: transport})
	require.NoError(t, ctrl.Connect(context.Background()))
	events := transport.lastConfig().Events

	events.OnModeChange(ModeSpeaking)
	require.Equal(t, fsm.PhaseSyncing, ctrl.Phase())

	waitForPhase(t, ctrl, fsm.PhaseListening)
	events.OnModeChange(ModeSpeaking)
	require.Equal(t, fsm.PhaseSpeaking, ctrl.Phase())
	events.OnModeChange(ModeSpeaking)
	require.Equal(t, fsm.PhaseSpeaking, ctrl.Phase())
	events.OnModeChange(ModeListening)
	require.Equal(t, fsm.PhaseListening, ctrl.Phase())

	require.NoError(t, ctrl.Disconnect(context.Background()))
	events.OnModeChange(ModeSpeaking)
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())
}

func TestTransportDisconnectCallback(t *testing.T) {
	transport := &fakeTransport{}
	mic := &fakeMicrophone{}
	indicator := &fakeIndicator{}
	ctrl := newTestController(Dependencies{Transport: transport, Microphone: mic, Indicator: indicator})
	require.NoError(t, ctrl.Connect(context.Background()))
	waitForPhase(t, ctrl, fsm.PhaseListening)

	events := transport.lastConfig().Events
	events.OnConnect("conv-1")
	require.Equal(t, "conv-1", ctrl.Snapshot().ConversationID)

	events.OnError(errors.New("socket hiccup"))
	require.Equal(t, fsm.PhaseListening, ctrl.Phase())
	require.Len(t, indicator.errorTexts(), 1)

	events.OnDisconnect(errors.New("remote closed"))
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())
	require.EqualValues(t, 1, mic.closes.Load())

	events.OnDisconnect(nil)
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())
	require.EqualValues(t, 0, transport.ends.Load())
}

func TestResetIsIdempotent(t *testing.T) {
	gw := &fakeGateway{
		analysis:  gateway.Analysis{Score: 9, Validation: "High concern."},
		helplines: []screening.Helpline{{Name: "X", Number: "1"}},
	}
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport, Gateway: gw})
	require.NoError(t, ctrl.Connect(context.Background()))
	handlers := transport.lastConfig().Tools
	handlers.SubmitScreeningReport(context.Background(), "s")
	handlers.GetHelplines(context.Background())
	require.NoError(t, ctrl.Disconnect(context.Background()))

	require.NoError(t, ctrl.Reset(context.Background()))
	first := ctrl.Snapshot()
	require.NoError(t, ctrl.Reset(context.Background()))
	second := ctrl.Snapshot()

	require.Equal(t, first, second)
	require.Equal(t, fsm.PhaseIdle, second.Phase)
	require.Nil(t, second.Result)
	require.False(t, second.HelplinesVisible)
	require.Equal(t, screening.DefaultHelplines(), second.Helplines)
}

func TestResetRejectedWhileConnected(t *testing.T) {
	ctrl := newTestController(Dependencies{Transport: &fakeTransport{}})
	require.NoError(t, ctrl.Connect(context.Background()))

	require.ErrorIs(t, ctrl.Reset(context.Background()), ErrStillConnected)
	require.Equal(t, fsm.PhaseSyncing, ctrl.Phase())
}

func TestResetFromFailed(t *testing.T) {
	transport := &fakeTransport{}
	transport.startErr.Store(errPointer(errors.New("nope")))
	ctrl := newTestController(Dependencies{Transport: transport})
	require.Error(t, ctrl.Connect(context.Background()))

	require.NoError(t, ctrl.Reset(context.Background()))
	require.Equal(t, fsm.PhaseIdle, ctrl.Phase())
}

func TestScreeningEndToEnd(t *testing.T) {
	gw := &fakeGateway{analysis: gateway.Analysis{Score: 7, Validation: "Moderate concern noted."}}
	transport := &fakeTransport{}
	indicator := &fakeIndicator{}
	ctrl := newTestController(Dependencies{Transport: transport, Gateway: gw, Indicator: indicator})

	require.NoError(t, ctrl.Connect(context.Background()))
	waitForPhase(t, ctrl, fsm.PhaseListening)

	spoken := transport.lastConfig().Tools.SubmitScreeningReport(context.Background(), "patient reports low mood")
	require.Equal(t, "Moderate concern noted.", spoken)

	snap := ctrl.Snapshot()
	require.NotNil(t, snap.Result)
	require.Equal(t, screening.Result{Score: 7, Summary: "patient reports low mood", Validation: "Moderate concern noted."}, *snap.Result)
	require.False(t, snap.Processing)
	require.Equal(t, []bool{true, false}, indicator.processingHistory())
	require.EqualValues(t, 1, indicator.results.Load())
}

func TestScreeningBackendFailure(t *testing.T) {
	gw := &fakeGateway{submitErr: gateway.ErrBackendUnavailable}
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport, Gateway: gw})
	require.NoError(t, ctrl.Connect(context.Background()))

	spoken := transport.lastConfig().Tools.SubmitScreeningReport(context.Background(), "x")
	require.Equal(t, screening.ApologyText, spoken)

	snap := ctrl.Snapshot()
	require.Nil(t, snap.Result)
	require.False(t, snap.Processing)
}

func TestHelplinesReplaceDefaults(t *testing.T) {
	fresh := []screening.Helpline{
		{Name: "Vandrevala", Number: "9999666555", Description: "24/7"},
		{Name: "AASRA", Number: "9820466726", Description: "24/7"},
	}
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport, Gateway: &fakeGateway{helplines: fresh}})
	require.NoError(t, ctrl.Connect(context.Background()))

	require.Equal(t, screening.HelplinesShownText, transport.lastConfig().Tools.GetHelplines(context.Background()))

	snap := ctrl.Snapshot()
	require.True(t, snap.HelplinesVisible)
	require.Equal(t, fresh, snap.Helplines)
}

func TestHelplinesFailureKeepsListVisible(t *testing.T) {
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport, Gateway: &fakeGateway{fetchErr: gateway.ErrBackendUnavailable}})
	require.NoError(t, ctrl.Connect(context.Background()))

	require.Equal(t, screening.HelplinesShownText, transport.lastConfig().Tools.GetHelplines(context.Background()))

	snap := ctrl.Snapshot()
	require.True(t, snap.HelplinesVisible)
	require.Equal(t, screening.DefaultHelplines(), snap.Helplines)
}

func TestResultAfterDisconnectStillPublished(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{analysis: gateway.Analysis{Score: 3, Validation: "Low concern."}, block: release}
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport, Gateway: gw})
	require.NoError(t, ctrl.Connect(context.Background()))
	handlers := transport.lastConfig().Tools

	done := make(chan string, 1)
	go func() { done <- handlers.SubmitScreeningReport(context.Background(), "late") }()
	waitForCondition(t, func() bool { return gw.submits.Load() == 1 })

	require.NoError(t, ctrl.Disconnect(context.Background()))
	close(release)
	require.Equal(t, "Low concern.", <-done)

	snap := ctrl.Snapshot()
	require.NotNil(t, snap.Result)
	require.Equal(t, "late", snap.Result.Summary)
}

func TestResultAfterResetDiscarded(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{analysis: gateway.Analysis{Score: 8, Validation: "High concern."}, block: release}
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport, Gateway: gw})
	require.NoError(t, ctrl.Connect(context.Background()))
	handlers := transport.lastConfig().Tools

	done := make(chan string, 1)
	go func() { done <- handlers.SubmitScreeningReport(context.Background(), "stale") }()
	waitForCondition(t, func() bool { return gw.submits.Load() == 1 })

	require.NoError(t, ctrl.Disconnect(context.Background()))
	require.NoError(t, ctrl.Reset(context.Background()))
	close(release)
	require.Equal(t, "High concern.", <-done)

	snap := ctrl.Snapshot()
	require.Nil(t, snap.Result)
	require.False(t, snap.Processing)
	require.Equal(t, fsm.PhaseIdle, snap.Phase)
}

func TestDisconnectCancelsConnectOpeningMicrophone(t *testing.T) {
	mic := &fakeMicrophone{openGate: make(chan struct{})}
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport, Microphone: mic})

	connectErr := make(chan error, 1)
	go func() { connectErr <- ctrl.Connect(context.Background()) }()
	waitForCondition(t, func() bool { return mic.opening.Load() == 1 })

	require.NoError(t, ctrl.Disconnect(context.Background()))
	close(mic.openGate)

	require.ErrorIs(t, <-connectErr, errConnectAborted)
	require.Equal(t, fsm.PhaseIdle, ctrl.Phase())
	require.EqualValues(t, 0, transport.starts.Load())
	require.EqualValues(t, 1, mic.closes.Load())

	require.NoError(t, ctrl.Connect(context.Background()))
	require.Equal(t, fsm.PhaseSyncing, ctrl.Phase())
}

func TestResetReleasesSubmissionForNextSession(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{analysis: gateway.Analysis{Score: 6, Validation: "Moderate concern."}, block: release}
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport, Gateway: gw})
	require.NoError(t, ctrl.Connect(context.Background()))
	handlers := transport.lastConfig().Tools

	stale := make(chan string, 1)
	go func() { stale <- handlers.SubmitScreeningReport(context.Background(), "previous person") }()
	waitForCondition(t, func() bool { return gw.submits.Load() == 1 })
	require.True(t, ctrl.Snapshot().Processing)

	require.NoError(t, ctrl.Disconnect(context.Background()))
	require.NoError(t, ctrl.Reset(context.Background()))
	require.False(t, ctrl.Snapshot().Processing)

	require.NoError(t, ctrl.Connect(context.Background()))
	fresh := make(chan string, 1)
	go func() { fresh <- handlers.SubmitScreeningReport(context.Background(), "next person") }()
	waitForCondition(t, func() bool { return gw.submits.Load() == 2 })
	require.True(t, ctrl.Snapshot().Processing)

	close(release)
	require.Equal(t, "Moderate concern.", <-stale)
	require.Equal(t, "Moderate concern.", <-fresh)

	snap := ctrl.Snapshot()
	require.False(t, snap.Processing)
	require.NotNil(t, snap.Result)
	require.Equal(t, "next person", snap.Result.Summary)
}

func TestRunPrewarmsOnceAndSwallowsErrors(t *testing.T) {
	mic := &fakeMicrophone{prewarmErr: errors.New("denied")}
	ctrl := newTestController(Dependencies{Microphone: mic})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	waitForCondition(t, func() bool { return mic.prewarms.Load() == 1 })
	require.Equal(t, fsm.PhaseIdle, ctrl.Phase())

	cancel()
	require.NoError(t, <-done)
	ctrl.prewarm(context.Background())
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 1, mic.prewarms.Load())
}

func TestRunDisconnectsOnQuit(t *testing.T) {
	transport := &fakeTransport{}
	ctrl := newTestController(Dependencies{Transport: transport})

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(context.Background()) }()

	require.NoError(t, ctrl.Connect(context.Background()))
	resp := ctrl.Handle(context.Background(), ipcRequest("quit"))
	require.True(t, resp.OK)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after quit")
	}
	require.Equal(t, fsm.PhaseDisconnected, ctrl.Phase())
	require.EqualValues(t, 1, transport.ends.Load())
}

func waitForPhase(t *testing.T, ctrl *Controller, want fsm.Phase) {
	t.Helper()
	waitForCondition(t, func() bool { return ctrl.Phase() == want })
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func errPointer(err error) *error { return &err }

type fakeTransport struct {
	starts   atomic.Int32
	ends     atomic.Int32
	startErr atomic.Pointer[error]
	endErr   error
	block    chan struct{}

	mu  sync.Mutex
	cfg SessionConfig
}

func (f *fakeTransport) StartSession(ctx context.Context, cfg SessionConfig) error {
	f.starts.Add(1)
	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			<-f.block
		}
	}
	if errPtr := f.startErr.Load(); errPtr != nil {
		return *errPtr
	}
	return nil
}

func (f *fakeTransport) EndSession(context.Context) error {
	f.ends.Add(1)
	return f.endErr
}

func (f *fakeTransport) lastConfig() SessionConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

type fakeMicrophone struct {
	prewarmErr error
	openErr    error
	openGate   chan struct{}
	opening    atomic.Int32
	prewarms   atomic.Int32
	opens      atomic.Int32
	closes     atomic.Int32
}

func (f *fakeMicrophone) Prewarm(context.Context) error {
	f.prewarms.Add(1)
	return f.prewarmErr
}

func (f *fakeMicrophone) Open(context.Context) (AudioStream, error) {
	f.opening.Add(1)
	if f.openGate != nil {
		<-f.openGate
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens.Add(1)
	return &fakeStream{mic: f, ch: make(chan []byte)}, nil
}

type fakeStream struct {
	mic  *fakeMicrophone
	ch   chan []byte
	once sync.Once
}

func (s *fakeStream) Chunks() <-chan []byte { return s.ch }

func (s *fakeStream) Close() {
	s.once.Do(func() {
		s.mic.closes.Add(1)
		close(s.ch)
	})
}

type fakeGateway struct {
	analysis  gateway.Analysis
	submitErr error
	helplines []screening.Helpline
	fetchErr  error
	block     chan struct{}
	submits   atomic.Int32
}

func (f *fakeGateway) SubmitScreeningReport(context.Context, string) (gateway.Analysis, error) {
	f.submits.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.analysis, f.submitErr
}

func (f *fakeGateway) FetchHelplines(context.Context) ([]screening.Helpline, error) {
	return f.helplines, f.fetchErr
}

type fakeIndicator struct {
	results   atomic.Int32
	helplines atomic.Int32
	hides     atomic.Int32

	mu         sync.Mutex
	phases     []fsm.Phase
	processing []bool
	errors     []string
}

func (f *fakeIndicator) ShowPhase(_ context.Context, phase fsm.Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phases = append(f.phases, phase)
}

func (f *fakeIndicator) ShowProcessing(_ context.Context, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processing = append(f.processing, on)
}

func (f *fakeIndicator) ShowResult(context.Context, screening.Result) { f.results.Add(1) }

func (f *fakeIndicator) ShowHelplines(context.Context, []screening.Helpline) { f.helplines.Add(1) }

func (f *fakeIndicator) ShowError(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, text)
}

func (f *fakeIndicator) Hide(context.Context) { f.hides.Add(1) }

func (f *fakeIndicator) phaseHistory() []fsm.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fsm.Phase(nil), f.phases...)
}

func (f *fakeIndicator) processingHistory() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.processing...)
}

func (f *fakeIndicator) errorTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.errors...)
}
