package intent

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	dialogflow "cloud.google.com/go/dialogflow/apiv2"
	"cloud.google.com/go/dialogflow/apiv2/dialogflowpb"
	"google.golang.org/api/option"

	"github.com/pavelanni/questionbot/internal/model"
)

// CredentialsJSONEnv holds inline service-account JSON as an alternative to a
// credentials file.
const CredentialsJSONEnv = "GOOGLE_APPLICATION_CREDENTIALS_JSON"

// DefaultLanguage is used when neither the request nor the adapter sets one.
const DefaultLanguage = "en"

type detectFunc func(ctx context.Context, req *dialogflowpb.DetectIntentRequest) (*dialogflowpb.DetectIntentResponse, error)

// Dialogflow classifies messages with a Dialogflow ES agent.
type Dialogflow struct {
	project  string
	language string
	detect   detectFunc
	close    func() error
}

// DialogflowConfig configures the Dialogflow adapter.
type DialogflowConfig struct {
	ProjectID       string
	CredentialsFile string // empty means CredentialsJSONEnv or application default credentials
	Language        string
}

// NewDialogflow connects to the Dialogflow sessions API.
func NewDialogflow(ctx context.Context, cfg DialogflowConfig) (*Dialogflow, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("dialogflow project ID is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case os.Getenv(CredentialsJSONEnv) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(os.Getenv(CredentialsJSONEnv))))
	}

	client, err := dialogflow.NewSessionsClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create dialogflow client: %w", err)
	}

	d := newDialogflow(cfg.ProjectID, cfg.Language, func(ctx context.Context, req *dialogflowpb.DetectIntentRequest) (*dialogflowpb.DetectIntentResponse, error) {
		return client.DetectIntent(ctx, req)
	})
	d.close = client.Close
	return d, nil
}

func newDialogflow(project, language string, detect detectFunc) *Dialogflow {
	if language == "" {
		language = DefaultLanguage
	}
	return &Dialogflow{project: project, language: language, detect: detect}
}

// SessionPath returns the Dialogflow session resource name for id.
func (d *Dialogflow) SessionPath(id string) string {
	return fmt.Sprintf("projects/%s/agent/sessions/%s", d.project, id)
}

// Classify sends req.Text to the agent and returns the matched intent.
func (d *Dialogflow) Classify(ctx context.Context, req Request) (Result, error) {
	lang := req.Language
	if lang == "" {
		lang = d.language
	}

	resp, err := d.detect(ctx, &dialogflowpb.DetectIntentRequest{
		Session: d.SessionPath(req.SessionID),
		QueryInput: &dialogflowpb.QueryInput{
			Input: &dialogflowpb.QueryInput_Text{
				Text: &dialogflowpb.TextInput{Text: req.Text, LanguageCode: lang},
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: detect intent: %w", model.ErrClassifier, err)
	}

	qr := resp.GetQueryResult()
	if qr == nil {
		return Result{}, fmt.Errorf("%w: empty query result", model.ErrClassifier)
	}

	params := map[string]any{}
	if p := qr.GetParameters(); p != nil {
		params = p.AsMap()
	}

	res := Result{
		Intent:          qr.GetIntent().GetDisplayName(),
		Params:          params,
		FulfillmentText: qr.GetFulfillmentText(),
	}
	slog.Debug("intent detected", "session_id", req.SessionID, "intent", res.Intent,
		"confidence", qr.GetIntentDetectionConfidence())
	return res, nil
}

// Close releases the underlying gRPC connection.
func (d *Dialogflow) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}
