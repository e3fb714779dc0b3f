package config

import "reflect"

// ConfigDiff describes what changed between two loaded configs. Used on
// SIGHUP to decide what can be applied to a running gateway.
type ConfigDiff struct {
	ProvidersAdded   []string
	ProvidersRemoved []string
	ProvidersChanged []string

	AnalysisChanged bool
	NewAnalysis     AnalysisConfig

	SchedulerChanged bool
	NewScheduler     SchedulerConfig

	// Non-reloadable fields that changed (log warnings only)
	NonReloadable []string
}

// HasChanges reports whether any reloadable field changed.
func (d *ConfigDiff) HasChanges() bool {
	return len(d.ProvidersAdded) > 0 ||
		len(d.ProvidersRemoved) > 0 ||
		len(d.ProvidersChanged) > 0 ||
		d.AnalysisChanged ||
		d.SchedulerChanged
}

// Diff compares two configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	for name := range new.Providers {
		if _, ok := old.Providers[name]; !ok {
			d.ProvidersAdded = append(d.ProvidersAdded, name)
		}
	}
	for name := range old.Providers {
		if _, ok := new.Providers[name]; !ok {
			d.ProvidersRemoved = append(d.ProvidersRemoved, name)
		}
	}
	for name, newP := range new.Providers {
		if oldP, ok := old.Providers[name]; ok && !reflect.DeepEqual(oldP, newP) {
			d.ProvidersChanged = append(d.ProvidersChanged, name)
		}
	}

	if !reflect.DeepEqual(old.Analysis, new.Analysis) {
		d.AnalysisChanged = true
		d.NewAnalysis = new.Analysis
	}

	if old.Scheduler.PollInterval != new.Scheduler.PollInterval {
		d.SchedulerChanged = true
		d.NewScheduler = new.Scheduler
	}

	// Non-reloadable warnings
	if old.Web.Port != new.Web.Port {
		d.NonReloadable = append(d.NonReloadable, "web.port")
	}
	if old.NATS.Port != new.NATS.Port {
		d.NonReloadable = append(d.NonReloadable, "nats.port")
	}
	if old.NATS.DataDir != new.NATS.DataDir {
		d.NonReloadable = append(d.NonReloadable, "nats.data_dir")
	}
	if old.Store.Path != new.Store.Path {
		d.NonReloadable = append(d.NonReloadable, "store.path")
	}
	if old.Vault.Passphrase != new.Vault.Passphrase {
		d.NonReloadable = append(d.NonReloadable, "vault.passphrase")
	}

	return d
}
