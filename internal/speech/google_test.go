package speech

import (
	"bytes"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rbright/vmemo/internal/audio"
	"github.com/rbright/vmemo/internal/wav"
)

type fakeSpeechServer struct {
	speechpb.UnimplementedSpeechServer

	calls atomic.Int32

	mu   sync.Mutex
	last *speechpb.RecognizeRequest
	resp *speechpb.RecognizeResponse
	err  error
}

func (s *fakeSpeechServer) Recognize(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	if s.resp == nil {
		return &speechpb.RecognizeResponse{}, nil
	}
	return s.resp, nil
}

func (s *fakeSpeechServer) lastRequest() *speechpb.RecognizeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func startSpeechServer(t *testing.T, fake *fakeSpeechServer) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	speechpb.RegisterSpeechServer(server, fake)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	return lis.Addr().String()
}

func newTestGoogle(t *testing.T, fake *fakeSpeechServer, cfg GoogleConfig) *Google {
	t.Helper()

	cfg.Endpoint = startSpeechServer(t, fake)
	cfg.Insecure = true
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	g, err := NewGoogle(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func encodeTestAudio(t *testing.T, format audio.Format, pcm []byte) wav.Audio {
	t.Helper()
	encoded, err := wav.Encoder{}.Encode(pcm, format)
	require.NoError(t, err)
	return encoded
}

func TestGoogleTranscribeJoinsResults(t *testing.T) {
	fake := &fakeSpeechServer{resp: &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hello"}}},
			{Alternatives: nil},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " world "}, {Transcript: "word"}}},
		},
	}}
	var dump bytes.Buffer
	g := newTestGoogle(t, fake, GoogleConfig{
		LanguageCode:          "en-GB",
		AutomaticPunctuation:  true,
		DebugResponseSinkJSON: &dump,
	})

	format := audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}
	result := g.Transcribe(context.Background(), encodeTestAudio(t, format, []byte{1, 0, 2, 0}))
	require.Equal(t, OutcomeText, result.Outcome)
	require.Equal(t, "hello world", result.Text)

	req := fake.lastRequest()
	require.Equal(t, speechpb.RecognitionConfig_LINEAR16, req.GetConfig().GetEncoding())
	require.Equal(t, int32(44100), req.GetConfig().GetSampleRateHertz())
	require.Equal(t, int32(2), req.GetConfig().GetAudioChannelCount())
	require.Equal(t, "en-GB", req.GetConfig().GetLanguageCode())
	require.True(t, req.GetConfig().GetEnableAutomaticPunctuation())
	require.Equal(t, []byte{1, 0, 2, 0}, req.GetAudio().GetContent())

	require.Contains(t, dump.String(), "hello")
}

func TestGoogleEmptyResultIsNoSpeech(t *testing.T) {
	fake := &fakeSpeechServer{}
	g := newTestGoogle(t, fake, GoogleConfig{})

	result := g.Transcribe(context.Background(), encodeTestAudio(t, audio.DefaultFormat(), []byte{1, 0}))
	require.Equal(t, OutcomeNoSpeech, result.Outcome)
	require.Equal(t, NoSpeechMessage, result.Display())
}

func TestGoogleEmptyAudioSkipsNetwork(t *testing.T) {
	fake := &fakeSpeechServer{}
	g := newTestGoogle(t, fake, GoogleConfig{})

	result := g.Transcribe(context.Background(), encodeTestAudio(t, audio.DefaultFormat(), nil))
	require.Equal(t, OutcomeNoSpeech, result.Outcome)
	require.Equal(t, int32(0), fake.calls.Load())
}

func TestGoogleRejectsNon16BitLocally(t *testing.T) {
	fake := &fakeSpeechServer{}
	g := newTestGoogle(t, fake, GoogleConfig{})

	format := audio.Format{SampleRate: 48000, Channels: 1, BitDepth: 24}
	result := g.Transcribe(context.Background(), encodeTestAudio(t, format, make([]byte, 6)))
	require.Equal(t, OutcomeInvalidInput, result.Outcome)
	require.Contains(t, result.Message, "24-bit")
	require.Equal(t, int32(0), fake.calls.Load())
}

func TestGoogleServiceErrorCarriesMessageVerbatim(t *testing.T) {
	fake := &fakeSpeechServer{err: status.Error(codes.ResourceExhausted, "quota exceeded")}
	g := newTestGoogle(t, fake, GoogleConfig{})

	result := g.Transcribe(context.Background(), encodeTestAudio(t, audio.DefaultFormat(), []byte{1, 0}))
	require.Equal(t, OutcomeServiceError, result.Outcome)
	require.Equal(t, "quota exceeded", result.Message)
	require.Equal(t, "Could not request results; quota exceeded", result.Display())
}

func TestGoogleInvalidArgumentIsInvalidInput(t *testing.T) {
	fake := &fakeSpeechServer{err: status.Error(codes.InvalidArgument, "sample rate mismatch")}
	g := newTestGoogle(t, fake, GoogleConfig{})

	result := g.Transcribe(context.Background(), encodeTestAudio(t, audio.DefaultFormat(), []byte{1, 0}))
	require.Equal(t, OutcomeInvalidInput, result.Outcome)
	require.Equal(t, "sample rate mismatch", result.Message)
}

func TestClassifyGRPCErrorPlainError(t *testing.T) {
	result := classifyGRPCError(context.DeadlineExceeded)
	require.Equal(t, OutcomeServiceError, result.Outcome)
	require.Equal(t, context.DeadlineExceeded.Error(), result.Message)
}

func TestTimedRecordsLatency(t *testing.T) {
	slow := TranscriberFunc(func(context.Context, wav.Audio) Result {
		time.Sleep(5 * time.Millisecond)
		return Text("ok")
	})
	result := Timed(slow).Transcribe(context.Background(), wav.Audio{})
	require.Equal(t, "ok", result.Text)
	require.GreaterOrEqual(t, result.Latency, 5*time.Millisecond)
}

func TestGoogleSendsPhrasesAsSpeechContexts(t *testing.T) {
	fake := &fakeSpeechServer{}
	g := newTestGoogle(t, fake, GoogleConfig{
		Phrases: []Phrase{
			{Text: "vmemo", Boost: 18},
			{Text: "Whisper", Boost: 10},
			{Text: " ", Boost: 10},
			{Text: "Hyprland", Boost: 18},
		},
	})

	_ = g.Transcribe(context.Background(), encodeTestAudio(t, audio.DefaultFormat(), []byte{1, 0}))

	contexts := fake.lastRequest().GetConfig().GetSpeechContexts()
	require.Len(t, contexts, 2)
	require.Equal(t, []string{"vmemo", "Hyprland"}, contexts[0].GetPhrases())
	require.Equal(t, float32(18), contexts[0].GetBoost())
	require.Equal(t, []string{"Whisper"}, contexts[1].GetPhrases())
	require.Equal(t, float32(10), contexts[1].GetBoost())
}
