package googlesheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ServiceAccountKey represents the structure of a service account JSON key file
type ServiceAccountKey struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
}

// NewWithJSONKeyFile opens the spreadsheet with a JSON key file, falling back to
// GOOGLE_APPLICATION_CREDENTIALS when jsonPath is empty. Extra options are passed
// to the Sheets service after the credentials.
func NewWithJSONKeyFile(ctx context.Context, config Config, jsonPath string, opts ...option.ClientOption) (*Workbook, error) {
	if jsonPath == "" {
		jsonPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		if jsonPath == "" {
			return nil, fmt.Errorf("no JSON key file path provided and GOOGLE_APPLICATION_CREDENTIALS not set")
		}
	}

	jsonData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON key file: %w", err)
	}
	return NewWithJSONKeyData(ctx, config, jsonData, opts...)
}

// NewWithJSONKeyData opens the spreadsheet with the content of a JSON key file
func NewWithJSONKeyData(ctx context.Context, config Config, jsonData []byte, opts ...option.ClientOption) (*Workbook, error) {
	creds, err := google.CredentialsFromJSON(ctx, jsonData, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return NewWorkbook(ctx, config, append([]option.ClientOption{option.WithCredentials(creds)}, opts...)...)
}

// NewWithServiceAccountKey opens the spreadsheet as the service account email
// signing with privateKey (PEM). The key is only checked on the first API call.
func NewWithServiceAccountKey(ctx context.Context, config Config, email string, privateKey string, opts ...option.ClientOption) (*Workbook, error) {
	ts := serviceAccountTokenSource(ctx, email, privateKey, "")
	return NewWorkbook(ctx, config, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
}

// NewWithDefaultCredentials opens the spreadsheet with Application Default Credentials
func NewWithDefaultCredentials(ctx context.Context, config Config, opts ...option.ClientOption) (*Workbook, error) {
	ts, err := google.DefaultTokenSource(ctx, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to get default token source: %w", err)
	}
	return NewWorkbook(ctx, config, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
}

// ParseServiceAccountJSON parses and checks a service account key
func ParseServiceAccountJSON(jsonData []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(jsonData, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
	}

	if key.Type != "service_account" {
		return nil, fmt.Errorf("invalid key type: %s (expected: service_account)", key.Type)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("missing required fields in service account key")
	}

	return &key, nil
}

// CreateTokenSource creates a token source from a key file path (string), JSON key
// data ([]byte) or a parsed *ServiceAccountKey
func CreateTokenSource(ctx context.Context, credentials interface{}) (oauth2.TokenSource, error) {
	switch cred := credentials.(type) {
	case string:
		return createTokenSourceFromFile(ctx, cred)
	case []byte:
		return createTokenSourceFromJSON(ctx, cred)
	case *ServiceAccountKey:
		return serviceAccountTokenSource(ctx, cred.ClientEmail, cred.PrivateKey, cred.TokenURI), nil
	default:
		return nil, fmt.Errorf("unsupported credential type: %T", credentials)
	}
}

func createTokenSourceFromFile(ctx context.Context, path string) (oauth2.TokenSource, error) {
	jsonData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return createTokenSourceFromJSON(ctx, jsonData)
}

func createTokenSourceFromJSON(ctx context.Context, jsonData []byte) (oauth2.TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, jsonData, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds.TokenSource, nil
}

// serviceAccountTokenSource signs JWT grants for the Sheets scope. Token requests
// go through the HTTP client of ctx (oauth2.HTTPClient), if any.
func serviceAccountTokenSource(ctx context.Context, email, privateKey, tokenURL string) oauth2.TokenSource {
	if tokenURL == "" {
		tokenURL = google.JWTTokenURL
	}
	conf := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   tokenURL,
	}
	return conf.TokenSource(ctx)
}

// Environment variables read by NewFromEnvironment
const (
	EnvSpreadsheetID = "SHEETORM_SPREADSHEET_ID"
	EnvClientEmail   = "SHEETORM_CLIENT_EMAIL"
	EnvPrivateKey    = "SHEETORM_PRIVATE_KEY"
)

// NewFromEnvironment loads the given dotenv files (".env" when none is given; missing
// files are ignored) and creates a Workbook from the environment. A service account
// email and key take precedence; otherwise Application Default Credentials are used.
func NewFromEnvironment(ctx context.Context, envFiles ...string) (*Workbook, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	config := Config{SpreadsheetID: os.Getenv(EnvSpreadsheetID)}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: set %s", err, EnvSpreadsheetID)
	}

	email, key := os.Getenv(EnvClientEmail), os.Getenv(EnvPrivateKey)
	if email != "" && key != "" {
		return NewWithServiceAccountKey(ctx, config, email, key)
	}
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		return NewWithJSONKeyFile(ctx, config, "")
	}
	return NewWithDefaultCredentials(ctx, config)
}
