package fetcher

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

func TestKiroRunsResolvedInvocation(t *testing.T) {
	var gotName string
	var gotArgs []string
	f := &kiroFetcher{run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("| KIRO FREE |\n40% used, resets on 10/01\n"), nil
	}}
	cred := credential.Credential{
		Provider: provider.Kiro,
		Kind:     credential.CLIInvocation,
		Binary:   "/usr/local/bin/kiro-cli",
		Args:     []string{"chat", "--no-interactive", "/usage"},
	}
	raw, err := f.Fetch(context.Background(), cred, config.ProviderConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != cred.Binary || !slices.Equal(gotArgs, cred.Args) {
		t.Errorf("ran %s %v", gotName, gotArgs)
	}
	usage, ok := raw.(normalize.KiroUsage)
	if !ok || !strings.Contains(usage.Output, "40% used") {
		t.Fatalf("raw = %#v", raw)
	}
}

func TestKiroFailureIsTransport(t *testing.T) {
	f := &kiroFetcher{run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, &exec.ExitError{Stderr: []byte("not logged in\nrun kiro-cli login")}
	}}
	_, err := f.Fetch(context.Background(),
		credential.Credential{Provider: provider.Kiro, Kind: credential.CLIInvocation, Binary: "kiro-cli"},
		config.ProviderConfig{})
	if !errors.Is(err, model.ErrTransportFailure) {
		t.Fatalf("err = %v, want TransportFailure", err)
	}
	var fe *model.FetchError
	if !errors.As(err, &fe) || !strings.HasSuffix(fe.Message, ": not logged in") {
		t.Errorf("message = %q, want first stderr line", fe.Message)
	}
}

func TestKiroCancelledIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	f := &kiroFetcher{run: func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, ctx.Err()
	}}
	_, err := f.Fetch(ctx,
		credential.Credential{Provider: provider.Kiro, Kind: credential.CLIInvocation, Binary: "kiro-cli"},
		config.ProviderConfig{})
	if !errors.Is(err, model.ErrTimeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
}

const quotaXML = `<application>
  <component name="AIAssistantQuotaManager2">
    <option name="nextRefill" value="{&quot;type&quot;:&quot;Known&quot;,&quot;next&quot;:&quot;2025-10-01T00:00:00Z&quot;}" />
    <option name="quotaInfo" value="{&quot;type&quot;:&quot;Available&quot;,&quot;maximum&quot;:&quot;1000.0&quot;,&quot;tariffQuota&quot;:{&quot;available&quot;:&quot;750.0&quot;}}" />
  </component>
</application>`

func writeQuotaFile(t *testing.T, root, ide, body string, mod time.Time) {
	t.Helper()
	dir := filepath.Join(root, ide, "options")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "AIAssistantQuotaManager2.xml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestJetBrainsReadsNewestQuotaFile(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	writeQuotaFile(t, root, "PyCharm2024.3", `<application><component><option name="quotaInfo" value="{}"/></component></application>`, old)
	writeQuotaFile(t, root, "IntelliJIdea2025.2", quotaXML, time.Now())

	raw, err := jetbrainsFetcher{}.Fetch(context.Background(),
		credential.Credential{Provider: provider.JetBrains, Kind: credential.LocalFilePath, Path: root},
		config.ProviderConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	quota, ok := raw.(normalize.JetBrainsQuota)
	if !ok || quota.IDE != "IntelliJIdea2025.2" {
		t.Fatalf("raw = %#v", raw)
	}
	if !strings.Contains(quota.QuotaInfo, `"maximum":"1000.0"`) || !strings.Contains(quota.NextRefill, `"next"`) {
		t.Errorf("options not unescaped: %+v", quota)
	}
	snap, err := normalize.Normalize(provider.JetBrains, raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if *snap.Metrics[0].UsedPercent != 25 {
		t.Errorf("used = %v, want 25", *snap.Metrics[0].UsedPercent)
	}
}

func TestJetBrainsWithoutQuotaFile(t *testing.T) {
	_, err := jetbrainsFetcher{}.Fetch(context.Background(),
		credential.Credential{Provider: provider.JetBrains, Kind: credential.LocalFilePath, Path: t.TempDir()},
		config.ProviderConfig{})
	var fe *model.FetchError
	if !errors.As(err, &fe) || fe.Kind != model.KindMissingCredential {
		t.Fatalf("err = %v, want missing_credential", err)
	}
}

func TestParseQuotaOptionsRequiresQuotaInfo(t *testing.T) {
	_, err := parseQuotaOptions([]byte(`<application><component><option name="nextRefill" value="{}"/></component></application>`))
	if !errors.Is(err, model.ErrUnrecognizedResponseShape) {
		t.Fatalf("err = %v, want UnrecognizedResponseShape", err)
	}
}
