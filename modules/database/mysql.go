package database

import (
	"fmt"
	"io"
	"math/rand"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"xorm.io/xorm"
	xlog "xorm.io/xorm/log"
	"xorm.io/xorm/names"
)

// DB carries the connection settings for the backing MySQL schema.
type DB struct {
	User   string
	Pass   string
	Addr   string
	Schema string
}

var beans = []any{
	&Credential{},
	&AuthToken{},
	&CapabilityCache{},
	&MasterElement{},
	&TimetableBlob{},
	&WatchTarget{},
	&CalendarFeed{},
}

// Connect opens the MySQL schema and syncs the tables. SQL statements go
// to the given log writer.
func Connect(db DB, logWriter io.Writer) (*xorm.Engine, error) {
	addr := db.Addr
	if addr == "" {
		addr = "localhost:3306"
	}
	engine, err := xorm.NewEngine("mysql", db.User+":"+db.Pass+"@tcp("+addr+")/"+db.Schema+"?charset=utf8")
	if err != nil {
		return nil, err
	}

	return setup(engine, logWriter)
}

// ConnectSqlite opens a file-backed schema, mostly for tests and small
// single-user setups.
func ConnectSqlite(path string, logWriter io.Writer) (*xorm.Engine, error) {
	engine, err := xorm.NewEngine("sqlite3", path)
	if err != nil {
		return nil, err
	}

	return setup(engine, logWriter)
}

func setup(engine *xorm.Engine, logWriter io.Writer) (*xorm.Engine, error) {
	if logWriter != nil {
		engine.SetLogger(xlog.NewSimpleLogger(logWriter))
	}
	engine.ShowSQL(true)
	engine.SetMapper(names.SameMapper{})
	if err := engine.Sync(beans...); err != nil {
		return nil, err
	}

	return engine, nil
}

// GenerateID hands out a random 9-digit id that is not yet taken by the
// given bean's table.
func GenerateID(engine *xorm.Engine, bean any) (int64, error) {
	id := rand.Int63n(899999999) + 100000000 // #nosec G404

	exists, err := engine.ID(id).Exist(bean)
	if err != nil {
		return 0, fmt.Errorf("check id %d: %w", id, err)
	}
	if exists {
		return GenerateID(engine, bean)
	}

	return id, nil
}
