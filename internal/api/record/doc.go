// Package record converts alarms to and from protobuf Struct records.
//
// The same records travel over gRPC and make up the alarm file, so field
// names stay camelCase in both places.
package record
