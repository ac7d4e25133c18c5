// Package api provides the HTTP and WebSocket surface of specviewer.
//
//	@title						Spec Viewer API
//	@version					1.0
//	@description				Browser-state sync API for the OpenAPI documentation viewer demo.
//	@description				Each browser tab holds a WebSocket session whose state is mirrored
//	@description				into the tab's address bar.
//
//	@contact.name				ethPandaOps
//	@contact.url				https://github.com/ethpandaops/specviewer
//
//	@license.name				MIT
//	@license.url				https://github.com/ethpandaops/specviewer/blob/main/LICENSE
//
//	@host						localhost:8080
//	@BasePath					/api/v1
//
//	@securityDefinitions.basic	BasicAuth
//	@description				Admin credentials for catalog edits.
//
//	@tag.name					viewer
//	@tag.description			Derived viewer state
//
//	@tag.name					demos
//	@tag.description			Source picker catalog
//
//	@tag.name					system
//	@tag.description			System health and status
//
//	@tag.name					websocket
//	@tag.description			Per-tab viewer sessions
package api
