package database

import (
	"fmt"
	"strings"

	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/storage"
	"github.com/cuemby/glean/pkg/types"
	"github.com/rs/zerolog"
)

// InternalMetricsPrefix marks bookkeeping metrics that are never reported
const InternalMetricsPrefix = "glean.internal.metrics."

// MetricsDatabase stores metric values per lifetime. Inside each lifetime
// store values live at [ping, metric type, identifier].
type MetricsDatabase struct {
	userStore storage.Store
	pingStore storage.Store
	appStore  storage.Store
	logger    zerolog.Logger
}

// NewMetricsDatabase creates a metrics database over three lifetime stores
func NewMetricsDatabase(user, ping, app storage.Store) *MetricsDatabase {
	return &MetricsDatabase{
		userStore: user,
		pingStore: ping,
		appStore:  app,
		logger:    log.WithComponent("metrics_database"),
	}
}

func (db *MetricsDatabase) store(lifetime types.Lifetime) storage.Store {
	switch lifetime {
	case types.LifetimeUser:
		return db.userStore
	case types.LifetimeApplication:
		return db.appStore
	default:
		return db.pingStore
	}
}

// Record stores value for the metric in every ping it is sent in
func (db *MetricsDatabase) Record(metric types.CommonMetricData, metricType types.MetricType, value any) error {
	return db.Transform(metric, metricType, func(any) any { return value })
}

// Transform replaces the metric's value in every ping it is sent in with
// fn(old). old is nil when nothing is stored yet.
func (db *MetricsDatabase) Transform(metric types.CommonMetricData, metricType types.MetricType, fn storage.TransformFn) error {
	store := db.store(metric.EffectiveLifetime())
	identifier := metric.Identifier()

	for _, ping := range metric.SendInPings {
		if err := store.Update([]string{ping, string(metricType), identifier}, fn); err != nil {
			return fmt.Errorf("failed to record %s in %s: %w", identifier, ping, err)
		}
	}
	return nil
}

// HasMetric reports whether a value is stored for identifier in ping
func (db *MetricsDatabase) HasMetric(lifetime types.Lifetime, ping string, metricType types.MetricType, identifier string) bool {
	value, err := db.store(lifetime).Get([]string{ping, string(metricType), identifier})
	return err == nil && value != nil
}

// CountByBaseIdentifier counts the labels stored for a labeled metric in ping
func (db *MetricsDatabase) CountByBaseIdentifier(lifetime types.Lifetime, ping string, metricType types.MetricType, base string) int {
	value, err := db.store(lifetime).Get([]string{ping, string(metricType)})
	if err != nil {
		return 0
	}
	stored, ok := value.(map[string]any)
	if !ok {
		return 0
	}

	count := 0
	for identifier := range stored {
		if strings.HasPrefix(identifier, base+types.LabelSeparator) {
			count++
		}
	}
	return count
}

// GetMetric returns the validated payload value of a metric in ping, or
// nil if absent. Corrupt values are deleted and reported as absent.
func (db *MetricsDatabase) GetMetric(ping string, metric types.CommonMetricData, metricType types.MetricType) any {
	store := db.store(metric.EffectiveLifetime())
	path := []string{ping, string(metricType), metric.Identifier()}

	stored, err := store.Get(path)
	if err != nil {
		db.logger.Warn().Err(err).Str("metric", metric.Identifier()).Msg("Failed to read metric")
		return nil
	}
	if stored == nil {
		return nil
	}

	value, err := metricvalue.Validate(metricType, stored)
	if err != nil {
		db.logger.Warn().Err(err).Str("metric", metric.Identifier()).Msg("Unexpected value found in storage, deleting")
		if delErr := store.Delete(path); delErr != nil {
			db.logger.Error().Err(delErr).Msg("Failed to delete invalid metric value")
		}
		return nil
	}
	return value
}

// GetPingMetrics assembles the "metrics" section of ping from every
// lifetime. Labeled submetrics are regrouped under their base identifier.
// When clearPingLifetime is set the ping lifetime data for ping is removed.
func (db *MetricsDatabase) GetPingMetrics(ping string, clearPingLifetime bool) (map[string]any, error) {
	result := make(map[string]any)

	for _, lifetime := range types.Lifetimes {
		store := db.store(lifetime)
		value, err := store.Get([]string{ping})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s lifetime metrics: %w", lifetime, err)
		}
		if value == nil {
			continue
		}

		byType, ok := value.(map[string]any)
		if !ok {
			db.logger.Warn().Str("ping", ping).Msg("Unexpected data found in storage, deleting")
			if err := store.Delete([]string{ping}); err != nil {
				return nil, err
			}
			continue
		}

		for typeName, rawIdentifiers := range byType {
			metricType := types.MetricType(typeName)
			identifiers, ok := rawIdentifiers.(map[string]any)
			if !ok {
				db.deleteInvalid(store, []string{ping, typeName})
				continue
			}

			for identifier, stored := range identifiers {
				if strings.HasPrefix(identifier, InternalMetricsPrefix) {
					continue
				}
				payload, err := metricvalue.Validate(metricType, stored)
				if err != nil {
					db.logger.Warn().Err(err).Str("metric", identifier).Msg("Unexpected value found in storage, deleting")
					db.deleteInvalid(store, []string{ping, typeName, identifier})
					continue
				}
				addToPayload(result, metricType, identifier, payload)
			}
		}
	}

	if clearPingLifetime {
		if err := db.ClearPingLifetimeData(ping); err != nil {
			return nil, err
		}
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

func addToPayload(result map[string]any, metricType types.MetricType, identifier string, value any) {
	byIdentifier, ok := result[string(metricType)].(map[string]any)
	if !ok {
		byIdentifier = make(map[string]any)
		result[string(metricType)] = byIdentifier
	}

	if !metricType.IsLabeled() {
		byIdentifier[identifier] = value
		return
	}

	base, label, ok := types.SplitIdentifierAndLabel(identifier)
	if !ok {
		return
	}
	labels, ok := byIdentifier[base].(map[string]any)
	if !ok {
		labels = make(map[string]any)
		byIdentifier[base] = labels
	}
	labels[label] = value
}

func (db *MetricsDatabase) deleteInvalid(store storage.Store, path []string) {
	if err := store.Delete(path); err != nil {
		db.logger.Error().Err(err).Strs("path", path).Msg("Failed to delete invalid entry")
	}
}

// ClearPingLifetimeData removes every ping lifetime value stored for ping
func (db *MetricsDatabase) ClearPingLifetimeData(ping string) error {
	return db.pingStore.Delete([]string{ping})
}

// ClearLifetime removes every value of the given lifetime
func (db *MetricsDatabase) ClearLifetime(lifetime types.Lifetime) error {
	return db.store(lifetime).Delete(nil)
}

// ClearAll removes every stored metric of every lifetime
func (db *MetricsDatabase) ClearAll() error {
	for _, lifetime := range types.Lifetimes {
		if err := db.ClearLifetime(lifetime); err != nil {
			return fmt.Errorf("failed to clear %s lifetime metrics: %w", lifetime, err)
		}
	}
	return nil
}
