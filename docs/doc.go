// Package docs provides generated OpenAPI documentation.
//
// MathHub API
//
//	@title			MathHub API
//	@version		1.0
//	@description	OCR ingestion pipeline API for managing documents, jobs, and problem materialization.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/parksorry96/mathhub
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/mathhub/serve.go -o ./swagger --parseDependency --parseInternal
