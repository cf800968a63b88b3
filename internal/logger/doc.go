// Package logger wraps zap to offer:
//   - a global sugared logger with console or JSON encoding,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Services accept a context and extract the logger from it, so scoped,
// structured logging follows a request or a background loop.
package logger
