/*
Package types provides the shared type contracts of the BoardFlow engine.

types is the lowest-level public package. It depends on nothing inside the
module and defines the structured error system used by deliberation, voting,
config and the persistence collaborators, so that every recoverable or fatal
condition carries a stable machine-readable code.

  - Error / ErrorCode — structured error with code, message and cause
  - error helpers     — WrapError / AsError / IsErrorCode / GetErrorCode
*/
package types
