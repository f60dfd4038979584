package handler

import "github.com/go-playground/validator/v10"

// validate runs struct-tag validation for request shapes whose rules are
// independent of domain state (required fields, max lengths). Cross-field
// and state-dependent rules live in the domain package's Validate methods.
var validate = validator.New()
