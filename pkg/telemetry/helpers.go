/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	MetricNameSuffixTotal    = "_total"
	MetricNameSuffixDuration = "_duration_seconds"
	MetricNameSuffixRatio    = "_ratio"
)

const (
	AttrBackend     = "iplstore_backend"
	AttrBackendKind = "iplstore_backend_kind"
	AttrOperation   = "iplstore_operation"
	AttrStatus      = "iplstore_status"
	AttrReason      = "iplstore_reason"
	AttrEntityType  = "iplstore_entity_type"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func BuildMetricName(baseName, suffix string) string {
	return "iplstore_" + baseName + suffix
}

func WithBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrBackend, backend)
}

func WithBackendKind(kind string) attribute.KeyValue {
	return attribute.String(AttrBackendKind, kind)
}

func WithOperation(operation string) attribute.KeyValue {
	return attribute.String(AttrOperation, operation)
}

func WithStatus(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// WithReason labels why a failover happened (unreachable, usage, manual, failback)
func WithReason(reason string) attribute.KeyValue {
	return attribute.String(AttrReason, reason)
}

func WithEntityType(entityType string) attribute.KeyValue {
	return attribute.String(AttrEntityType, entityType)
}

// StatusOf maps an operation error to a status attribute
func StatusOf(err error) attribute.KeyValue {
	if err != nil {
		return WithStatus(StatusError)
	}
	return WithStatus(StatusSuccess)
}
