package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           instructd API
// @version         1.0
// @description     HTTP API for local instruction-following text generation.
//
// @contact.name   instructd maintainers
// @contact.url    https://github.com/your-org/instructd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
