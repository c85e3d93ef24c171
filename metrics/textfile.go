package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crease"

// WriteTextfile writes s in the Prometheus text exposition format to path,
// for pickup by the node exporter textfile collector. The file is written
// to a temporary name and renamed into place.
func WriteTextfile(path string, s Snapshot) error {
	reg, err := Registry(s)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Registry builds a Prometheus registry holding gauges for every counter in s.
func Registry(s Snapshot) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{
		"season":          s.Season,
		"storage_backend": s.StorageBackend,
		"warehouse":       s.Warehouse,
	}

	gauges := []struct {
		name  string
		help  string
		value int64
	}{
		{"runs_started", "Runs started.", s.RunsStarted},
		{"runs_completed", "Runs completed successfully.", s.RunsCompleted},
		{"runs_failed", "Runs ended in failure.", s.RunsFailed},
		{"tasks_executed", "Tasks whose artifact was produced.", s.TasksExecuted},
		{"tasks_skipped", "Tasks whose artifact already existed.", s.TasksSkipped},
		{"tasks_not_required", "Incomplete tasks pruned by complete downstream tasks.", s.TasksNotRequired},
		{"tasks_failed", "Tasks whose produce step failed.", s.TasksFailed},
		{"artifact_writes_success", "Artifacts published.", s.ArtifactWriteSuccess},
		{"artifact_writes_failure", "Artifact writes discarded.", s.ArtifactWriteFailure},
		{"tables_loaded", "Tables committed to the warehouse.", s.TablesLoaded},
		{"tables_failed", "Table loads rolled back.", s.TablesFailed},
		{"rows_inserted", "Rows inserted into the warehouse.", s.RowsInserted},
		{"rows_skipped", "Rows skipped because their identity already existed.", s.RowsSkipped},
		{"rows_deduplicated", "Rows dropped as in-batch duplicates.", s.RowsDeduplicated},
	}

	for _, g := range gauges {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        g.name,
			Help:        g.help,
			ConstLabels: labels,
		})
		gauge.Set(float64(g.value))
		if err := reg.Register(gauge); err != nil {
			return nil, fmt.Errorf("register %s: %w", g.name, err)
		}
	}

	byTable := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "table_rows_inserted",
		Help:        "Rows inserted per warehouse table.",
		ConstLabels: labels,
	}, []string{"table"})
	for table, n := range s.RowsByTable {
		byTable.WithLabelValues(table).Set(float64(n))
	}
	if err := reg.Register(byTable); err != nil {
		return nil, fmt.Errorf("register table_rows_inserted: %w", err)
	}
	return reg, nil
}
