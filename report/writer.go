// Package report writes the per-run CSV outputs.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/kartta/types"
)

const timestampLayout = "20060102_150405"

// Paths are the files one run produced.
type Paths struct {
	Dir       string
	Resources string
	Services  string
}

// OutputDir derives the per-run directory name from the fetched
// application metadata: <app_code>_<apm_id>_<app name>, empty parts
// skipped, name sanitized for the filesystem.
func OutputDir(root string, meta types.RunMeta) string {
	var parts []string
	for _, p := range []string{meta.AppCode, meta.APMID, sanitize(meta.AppName)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = []string{"unknown_app"}
	}
	return filepath.Join(root, strings.Join(parts, "_"))
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '/':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// Write emits both reports into dir, file names stamped with the run
// time. Column order and names are a downstream compatibility
// contract; the row types own it.
func Write(dir string, runTime time.Time, resources []types.ResourceRow, services []types.ServiceRow) (Paths, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create output dir: %w", err)
	}

	ts := runTime.Format(timestampLayout)
	paths := Paths{
		Dir:       dir,
		Resources: filepath.Join(dir, "app_resources_"+ts+".csv"),
		Services:  filepath.Join(dir, "app_services_"+ts+".csv"),
	}

	resourceRecords := make([][]string, 0, len(resources))
	for _, r := range resources {
		resourceRecords = append(resourceRecords, r.Record())
	}
	if err := writeCSV(paths.Resources, types.ResourceHeader, resourceRecords); err != nil {
		return Paths{}, err
	}

	serviceRecords := make([][]string, 0, len(services))
	for _, s := range services {
		serviceRecords = append(serviceRecords, s.Record())
	}
	if err := writeCSV(paths.Services, types.ServiceHeader, serviceRecords); err != nil {
		return Paths{}, err
	}

	log.Info().
		Str("dir", dir).
		Int("resource_rows", len(resources)).
		Int("service_rows", len(services)).
		Msg("reports written")

	return paths, nil
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path) // #nosec G304 -- path is derived from config
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
