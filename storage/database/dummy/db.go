// Package dummydb provides in-memory repositories for tests.
package dummydb

import (
	"sync"

	"github.com/shule-app/shule/core/messaging"
	"github.com/shule-app/shule/core/school"
	localidp "github.com/shule-app/shule/identity/local"
)

type (
	DB struct {
		user          *userTable
		school        *schoolTable
		conversations *messagingTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*localidp.User
	}

	schoolTable struct {
		sync.RWMutex
		pk    int64
		table map[int64]*school.School
	}

	messagingTables struct {
		sync.RWMutex
		convPK   int64
		msgPK    int64
		convs    map[int64]*messaging.Conversation
		messages map[int64]*messaging.Message
	}
)

func Open() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]*localidp.User)},
		school: &schoolTable{table: make(map[int64]*school.School)},
		conversations: &messagingTables{
			convs:    make(map[int64]*messaging.Conversation),
			messages: make(map[int64]*messaging.Message),
		},
	}
}
