package web

import "embed"

//go:embed static/*.html static/*.css static/*.js
var Static embed.FS
