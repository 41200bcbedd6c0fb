package mongo

import (
	// Standard Library Imports
	"testing"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

func TestUserMongoManagerImplementsConfigure(t *testing.T) {
	u := &UserManager{}

	var i interface{} = u
	if _, ok := i.(oidc.Configure); !ok {
		t.Error("UserManager does not implement interface oidc.Configure")
	}
}

func TestUserMongoManagerImplementsUserStorer(t *testing.T) {
	u := &UserManager{}

	var i interface{} = u
	if _, ok := i.(oidc.UserStorer); !ok {
		t.Error("UserManager does not implement interface oidc.UserStorer")
	}
}

func TestUserMongoManagerImplementsUserManager(t *testing.T) {
	u := &UserManager{}

	var i interface{} = u
	if _, ok := i.(oidc.UserManager); !ok {
		t.Error("UserManager does not implement interface oidc.UserManager")
	}
}
