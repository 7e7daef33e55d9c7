package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	if err := SetupWriter(&buf, "warn"); err != nil {
		t.Fatal(err)
	}
	log.Info().Msg("hidden")
	Component("source").Warn().Str("dataset", "poi").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"component":"source"`) || !strings.Contains(out, `"dataset":"poi"`) {
		t.Fatalf("missing fields: %s", out)
	}
}

func TestSetupWriterBadLevel(t *testing.T) {
	if err := SetupWriter(&bytes.Buffer{}, "loud"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
