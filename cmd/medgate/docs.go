package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/medgate/docs.go -o internal/docs`.
//
// @title           medgate API
// @version         1.0
// @description     Medical chat gateway answering text prompts and image-grounded questions.
//
// @contact.name   medgate maintainers
// @contact.url    https://github.com/your-org/medgate
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
