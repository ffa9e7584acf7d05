package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"dailylog-bot/internal/apperr"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveStore keeps objects in one Google Drive folder.
type DriveStore struct {
	svc      *drive.Service
	folderID string
}

// OAuth2Credentials is the client section of a Google Cloud Console credentials file.
type OAuth2Credentials struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
}

type googleCredentialsFile struct {
	Type      string             `json:"type"`
	Installed *OAuth2Credentials `json:"installed,omitempty"`
	Web       *OAuth2Credentials `json:"web,omitempty"`
}

// NewDriveStore builds a Drive client from either a service-account key or
// OAuth client credentials plus a refresh token.
func NewDriveStore(ctx context.Context, credentialsJSON, refreshToken, folderID string) (*DriveStore, error) {
	opt, err := clientOption(ctx, []byte(credentialsJSON), refreshToken)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, apperr.Configuration("create drive service: %v", err)
	}
	return &DriveStore{svc: svc, folderID: folderID}, nil
}

func clientOption(ctx context.Context, raw []byte, refreshToken string) (option.ClientOption, error) {
	var file googleCredentialsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, apperr.Configuration("parse google credentials: %v", err)
	}
	if file.Type == "service_account" {
		return option.WithCredentialsJSON(raw), nil
	}
	config, err := OAuthConfig(raw)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, apperr.Configuration("GOOGLE_REFRESH_TOKEN is required for oauth client credentials")
	}
	ts := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return option.WithTokenSource(ts), nil
}

// OAuthConfig builds the Drive OAuth client from console credentials.
func OAuthConfig(raw []byte) (*oauth2.Config, error) {
	var file googleCredentialsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, apperr.Configuration("parse google credentials: %v", err)
	}
	creds, err := parseGoogleCredentials(raw, file)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Scopes:       []string{drive.DriveScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// parseGoogleCredentials accepts the bare client object as well as the
// "installed"/"web" wrappers produced by the console.
func parseGoogleCredentials(raw []byte, file googleCredentialsFile) (*OAuth2Credentials, error) {
	var direct OAuth2Credentials
	if err := json.Unmarshal(raw, &direct); err == nil && direct.ClientID != "" && direct.ClientSecret != "" {
		return &direct, nil
	}
	if file.Installed != nil {
		return file.Installed, nil
	}
	if file.Web != nil {
		return file.Web, nil
	}
	return nil, apperr.Configuration("no oauth client found in google credentials")
}

func (s *DriveStore) Exists(ctx context.Context, name string) (bool, error) {
	f, err := s.find(ctx, name)
	if err != nil {
		return false, err
	}
	return f != nil, nil
}

func (s *DriveStore) Download(ctx context.Context, name, dst string) (bool, error) {
	f, err := s.find(ctx, name)
	if err != nil || f == nil {
		return false, err
	}
	resp, err := s.svc.Files.Get(f.Id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return false, apperr.Remote("download "+name, err)
	}
	defer resp.Body.Close()
	if err := copyTo(dst, resp.Body); err != nil {
		return false, apperr.Remote("download "+name, err)
	}
	return true, nil
}

func (s *DriveStore) Upload(ctx context.Context, name, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open local copy: %w", err)
	}
	defer in.Close()

	existing, err := s.find(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err = s.svc.Files.Update(existing.Id, &drive.File{}).
			Media(in).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	} else {
		_, err = s.svc.Files.Create(&drive.File{Name: name, Parents: []string{s.folderID}}).
			Media(in).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	}
	if err != nil {
		return apperr.Remote("upload "+name, err)
	}
	return nil
}

func (s *DriveStore) List(ctx context.Context) ([]string, error) {
	var names []string
	pageToken := ""
	for {
		call := s.svc.Files.List().
			Q(s.folderQuery()).
			Fields("nextPageToken, files(name)").
			OrderBy("name").
			PageSize(200).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, apperr.Remote("list", err)
		}
		for _, f := range res.Files {
			names = append(names, f.Name)
		}
		if res.NextPageToken == "" {
			return names, nil
		}
		pageToken = res.NextPageToken
	}
}

func (s *DriveStore) find(ctx context.Context, name string) (*drive.File, error) {
	q := fmt.Sprintf("%s and name = '%s'", s.folderQuery(), escapeQuery(name))
	res, err := s.svc.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperr.Remote("lookup "+name, err)
	}
	if len(res.Files) == 0 {
		return nil, nil
	}
	return res.Files[0], nil
}

func (s *DriveStore) folderQuery() string {
	return fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'", escapeQuery(s.folderID), folderMimeType)
}

// escapeQuery quotes a value for a Drive search expression.
func escapeQuery(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
