package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	gspeech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/rbright/vmemo/internal/transcript"
	"github.com/rbright/vmemo/internal/wav"
)

// GoogleConfig configures the Cloud Speech provider.
type GoogleConfig struct {
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	// Phrases bias recognition toward domain vocabulary.
	Phrases []Phrase
	// CredentialsFile is a service account JSON path; empty uses application default credentials.
	CredentialsFile string
	// APIKey authenticates with an API key instead of credentials.
	APIKey string
	// Endpoint overrides the service address. Combined with Insecure it targets a local emulator.
	Endpoint    string
	Insecure    bool
	DialTimeout time.Duration
	Timeout     time.Duration
	// DebugResponseSinkJSON receives each response as one protojson line.
	DebugResponseSinkJSON io.Writer
	Logger                *slog.Logger
}

// Google transcribes 16-bit recordings with the synchronous Recognize RPC.
type Google struct {
	cfg    GoogleConfig
	client *gspeech.Client
	conn   *grpc.ClientConn

	debugMu sync.Mutex
}

// NewGoogle dials the service and returns a ready provider.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	g := &Google{cfg: cfg}
	var opts []option.ClientOption
	endpoint := strings.TrimSpace(cfg.Endpoint)
	switch {
	case endpoint != "" && cfg.Insecure:
		conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("dial speech grpc %q: %w", endpoint, err)
		}
		readyCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		conn.Connect()
		if err := waitForReady(readyCtx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("wait for speech grpc readiness: %w", err)
		}
		g.conn = conn
		opts = append(opts, option.WithGRPCConn(conn))
	case endpoint != "":
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if g.conn == nil {
		switch {
		case strings.TrimSpace(cfg.APIKey) != "":
			opts = append(opts, option.WithAPIKey(cfg.APIKey))
		case strings.TrimSpace(cfg.CredentialsFile) != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
	}

	client, err := gspeech.NewClient(ctx, opts...)
	if err != nil {
		if g.conn != nil {
			_ = g.conn.Close()
		}
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	g.client = client
	return g, nil
}

// Close releases the client connection.
func (g *Google) Close() error {
	err := g.client.Close()
	if g.conn != nil {
		_ = g.conn.Close()
	}
	return err
}

// Transcribe implements Transcriber.
func (g *Google) Transcribe(ctx context.Context, audio wav.Audio) Result {
	if audio.Empty() {
		return NoSpeech()
	}
	format := audio.Format()
	if format.BitDepth != 16 {
		return InvalidInput(fmt.Sprintf("linear16 recognition needs 16-bit samples, got %d-bit", format.BitDepth))
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(format.SampleRate),
			AudioChannelCount:          int32(format.Channels),
			LanguageCode:               g.cfg.LanguageCode,
			EnableAutomaticPunctuation: g.cfg.AutomaticPunctuation,
			Model:                      strings.TrimSpace(g.cfg.Model),
			SpeechContexts:             speechContexts(g.cfg.Phrases),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.PCM()},
		},
	}

	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		g.logWarn("speech recognize failed", err)
		return classifyGRPCError(err)
	}
	g.dumpResponse(resp)

	segments := make([]string, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		segments = append(segments, alternatives[0].GetTranscript())
	}

	text := transcript.Assemble(segments, transcript.Options{CapitalizeSentences: !g.cfg.AutomaticPunctuation})
	if text == "" {
		return NoSpeech()
	}
	return Text(text)
}

// speechContexts groups phrases by boost, preserving first-seen order.
func speechContexts(phrases []Phrase) []*speechpb.SpeechContext {
	if len(phrases) == 0 {
		return nil
	}
	out := make([]*speechpb.SpeechContext, 0)
	byBoost := make(map[float32]*speechpb.SpeechContext)
	for _, phrase := range phrases {
		text := strings.TrimSpace(phrase.Text)
		if text == "" {
			continue
		}
		ctx, ok := byBoost[phrase.Boost]
		if !ok {
			ctx = &speechpb.SpeechContext{Boost: phrase.Boost}
			byBoost[phrase.Boost] = ctx
			out = append(out, ctx)
		}
		ctx.Phrases = append(ctx.Phrases, text)
	}
	return out
}

// classifyGRPCError maps RPC failures to tagged results.
func classifyGRPCError(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ServiceError(err.Error())
	}
	st, ok := status.FromError(err)
	if !ok {
		return ServiceError(err.Error())
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return InvalidInput(st.Message())
	default:
		return ServiceError(st.Message())
	}
}

func (g *Google) dumpResponse(resp *speechpb.RecognizeResponse) {
	sink := g.cfg.DebugResponseSinkJSON
	if sink == nil {
		return
	}
	b, err := protojson.Marshal(resp)
	if err != nil {
		return
	}
	g.debugMu.Lock()
	defer g.debugMu.Unlock()
	_, _ = sink.Write(append(b, '\n'))
}

func (g *Google) logWarn(message string, err error) {
	if g.cfg.Logger == nil {
		return
	}
	g.cfg.Logger.Warn(message, "error", err.Error())
}

// waitForReady blocks until the connection is Ready or the context ends.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
