package fetcher

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// commandRunner runs a CLI and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type kiroFetcher struct {
	run commandRunner
}

func (f *kiroFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.CLIInvocation {
		return nil, unsupportedSource(cred)
	}
	out, err := f.run(ctx, cred.Binary, cred.Args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, transportError(ctx, provider.Kiro, err)
		}
		msg := "kiro-cli failed; make sure it is installed and logged in"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if line, _, _ := strings.Cut(strings.TrimSpace(string(exitErr.Stderr)), "\n"); line != "" {
				msg += ": " + line
			}
		}
		return nil, &model.FetchError{Kind: model.KindTransportFailure, Provider: string(provider.Kiro), Message: msg, Err: err}
	}
	return normalize.KiroUsage{Output: string(out)}, nil
}

const jetbrainsQuotaGlob = "**/options/AIAssistantQuotaManager2.xml"

type jetbrainsFetcher struct{}

// Fetch reads the most recently written quota file under the IDE config
// root the resolver found.
func (jetbrainsFetcher) Fetch(_ context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.LocalFilePath {
		return nil, unsupportedSource(cred)
	}
	path, err := newestQuotaFile(cred.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.FetchError{Kind: model.KindTransportFailure, Provider: string(provider.JetBrains), Message: err.Error(), Err: err}
	}
	quota, err := parseQuotaOptions(data)
	if err != nil {
		return nil, err
	}
	// <root>/<IDE>/options/AIAssistantQuotaManager2.xml
	quota.IDE = filepath.Base(filepath.Dir(filepath.Dir(path)))
	return quota, nil
}

func newestQuotaFile(root string) (string, error) {
	var best string
	var bestMod time.Time
	err := doublestar.GlobWalk(os.DirFS(root), jetbrainsQuotaGlob, func(p string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = p, info.ModTime()
		}
		return nil
	}, doublestar.WithCaseInsensitive())
	if err != nil {
		return "", &model.FetchError{Kind: model.KindTransportFailure, Provider: string(provider.JetBrains), Message: fmt.Sprintf("scanning %s: %v", root, err), Err: err}
	}
	if best == "" {
		return "", &model.FetchError{
			Kind:     model.KindMissingCredential,
			Provider: string(provider.JetBrains),
			Message:  fmt.Sprintf("no AI Assistant quota file under %s; open the AI Assistant in the IDE first", root),
		}
	}
	return filepath.Join(root, filepath.FromSlash(best)), nil
}

// parseQuotaOptions pulls the quotaInfo and nextRefill option values out of
// the IDE's component XML. Attribute values come back unescaped.
func parseQuotaOptions(data []byte) (normalize.JetBrainsQuota, error) {
	var q normalize.JetBrainsQuota
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return q, &model.NormalizationError{Kind: model.UnrecognizedResponseShape, Detail: fmt.Sprintf("jetbrains: %v", err)}
		}
		el, ok := tok.(xml.StartElement)
		if !ok || el.Name.Local != "option" {
			continue
		}
		var name, value string
		for _, a := range el.Attr {
			switch a.Name.Local {
			case "name":
				name = a.Value
			case "value":
				value = a.Value
			}
		}
		switch name {
		case "quotaInfo":
			q.QuotaInfo = value
		case "nextRefill":
			q.NextRefill = value
		}
	}
	if q.QuotaInfo == "" {
		return q, &model.NormalizationError{Kind: model.UnrecognizedResponseShape, Detail: "jetbrains: quotaInfo option missing"}
	}
	return q, nil
}
