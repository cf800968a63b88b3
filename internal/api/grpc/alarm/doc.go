// Package alarm implements the gRPC transport for the alarm daemon.
//
// The service is described by hand with ServiceDesc and uses protobuf
// well-known types as messages: wrappers for scalar arguments and
// structpb.Struct for records. The codec functions convert between those
// messages and domain types and are shared with the client.
package alarm
