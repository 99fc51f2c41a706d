package module

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultHealthCheckTimeout bounds a single post-install verification probe.
const DefaultHealthCheckTimeout = 10 * time.Second

// HealthReport is the outcome of one post-install verification.
type HealthReport struct {
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthVerifier performs a best-effort post-install probe against a freshly
// installed instance within a bounded timeout. Implementations never return a
// Go error; failures are carried in the report so the caller can persist the
// unhealthy status.
type HealthVerifier interface {
	Verify(ctx context.Context, instance *ModuleInstance, method *InstallationMethod) HealthReport
}

// ProbeVerifier verifies subprocess-backed modules by re-probing the tool
// that backs their installation method. It is the default verifier: modules
// installed through a package ecosystem respond to a version probe once the
// install has landed.
type ProbeVerifier struct {
	probe   CapabilityProbe
	timeout time.Duration
}

// NewProbeVerifier creates a probe-backed health verifier.
func NewProbeVerifier(probe CapabilityProbe, timeout time.Duration) *ProbeVerifier {
	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}
	return &ProbeVerifier{probe: probe, timeout: timeout}
}

// Verify probes the method's backing tool and reports healthy on success.
func (v *ProbeVerifier) Verify(ctx context.Context, instance *ModuleInstance, method *InstallationMethod) HealthReport {
	checkCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	_, err := v.probe.ToolVersion(checkCtx, probeToolFor(method))
	latency := time.Since(start)

	if err != nil {
		return HealthReport{
			Status:  HealthStatusUnhealthy,
			Latency: latency,
			Error:   err.Error(),
		}
	}
	return HealthReport{Status: HealthStatusHealthy, Latency: latency}
}

// HTTPVerifier verifies instances that expose an HTTP health endpoint.
// A 2xx response within the timeout is healthy.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPVerifier creates an HTTP health verifier for the given endpoint URL.
func NewHTTPVerifier(endpoint string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Verify performs an HTTP GET against the health endpoint.
func (v *HTTPVerifier) Verify(ctx context.Context, instance *ModuleInstance, method *InstallationMethod) HealthReport {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return HealthReport{
			Status:  HealthStatusUnhealthy,
			Latency: time.Since(start),
			Error:   fmt.Sprintf("failed to create request: %v", err),
		}
	}

	resp, err := v.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return HealthReport{
			Status:  HealthStatusUnhealthy,
			Latency: latency,
			Error:   fmt.Sprintf("request failed: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HealthReport{
			Status:  HealthStatusUnhealthy,
			Latency: latency,
			Error:   fmt.Sprintf("unhealthy status code: %d", resp.StatusCode),
		}
	}
	return HealthReport{Status: HealthStatusHealthy, Latency: latency}
}

// GRPCVerifier verifies instances that implement the standard gRPC health
// checking protocol (grpc_health_v1).
type GRPCVerifier struct {
	address     string
	serviceName string
	timeout     time.Duration
}

// NewGRPCVerifier creates a gRPC health verifier for "host:port".
// An empty service name checks overall server health.
func NewGRPCVerifier(address, serviceName string, timeout time.Duration) *GRPCVerifier {
	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}
	return &GRPCVerifier{address: address, serviceName: serviceName, timeout: timeout}
}

// Verify dials the instance and checks its serving status.
func (v *GRPCVerifier) Verify(ctx context.Context, instance *ModuleInstance, method *InstallationMethod) HealthReport {
	start := time.Now()

	conn, err := grpc.NewClient(v.address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return HealthReport{
			Status:  HealthStatusUnhealthy,
			Latency: time.Since(start),
			Error:   fmt.Sprintf("failed to create connection: %v", err),
		}
	}
	defer conn.Close()

	checkCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(checkCtx, &grpc_health_v1.HealthCheckRequest{
		Service: v.serviceName,
	})
	latency := time.Since(start)
	if err != nil {
		return HealthReport{
			Status:  HealthStatusUnhealthy,
			Latency: latency,
			Error:   fmt.Sprintf("health check request failed: %v", err),
		}
	}

	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return HealthReport{
			Status:  HealthStatusUnhealthy,
			Latency: latency,
			Error:   fmt.Sprintf("service not serving: %v", resp.Status),
		}
	}
	return HealthReport{Status: HealthStatusHealthy, Latency: latency}
}
