package streamchat

import "embed"

// TemplateFS contains the embedded HTML templates used when a transcript is exported.
//
//go:embed templates/*
var TemplateFS embed.FS
