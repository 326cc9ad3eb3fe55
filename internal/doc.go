// Package healthgw implements a health data gateway.
//
// # Architecture
//
// The service is structured into several key packages:
//   - metric: Descriptors of the supported health metrics
//   - bridge: Invocation of the platform health service and reply decoding
//   - gateway: Validation, read cycles and writes
//   - events: Delivery of datasets and write outcomes
//   - database: TimescaleDB storage of published samples
//   - grpc: gRPC service implementation
//   - config: File and environment configuration
//   - scheduler: Periodic read cycles
//
// Key Features
//
//   - Validated Writes:
//     Height, weight, blood pressure, heart rate and blood glucose are
//     range-checked before anything reaches the health service.
//
//   - Read Cycles:
//     Every metric is read in turn; a missing permission or a security
//     error aborts the cycle and nothing is published.
//
//   - History:
//     Published samples are stored in TimescaleDB and can be aggregated
//     (MIN, MAX, AVG, SUM) over 1m, 5m, 1h or 1d windows.
//
// Example Usage
//
//	client := server.NewHealthGatewayClient(conn)
//	req, _ := structpb.NewStruct(map[string]interface{}{
//	    "kind":  "weight",
//	    "value": 72.5,
//	})
//	resp, err := client.Write(ctx, req)
//
// For more information about specific packages, see their respective
// documentation.
package healthgw
