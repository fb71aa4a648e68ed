// Package openapi embeds the HTTP API description served at /swagger.
package openapi

import _ "embed"

//go:embed reservations.swagger.json
var Spec []byte
