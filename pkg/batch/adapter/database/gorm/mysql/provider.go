// Package mysql registers the MySQL dialector with the GORM adapter.
package mysql

import (
	"fmt"
	"net"
	"strconv"

	drivermysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/config"
	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
)

// Type is the database type handled by this package.
const Type = "mysql"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := ConnectionString(cfg)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	})
}

// ConnectionString builds the DSN through the driver's own Config so that
// time parsing and multi-statement migrations are always enabled.
func ConnectionString(c dbconfig.DatabaseConfig) (string, error) {
	var mc *drivermysql.Config
	if c.DSN != "" {
		parsed, err := drivermysql.ParseDSN(c.DSN)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		mc = parsed
	} else {
		mc = drivermysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		port := c.Port
		if port == 0 {
			port = 3306
		}
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
		mc.DBName = c.Database
	}
	mc.ParseTime = true
	mc.MultiStatements = true
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	if _, ok := mc.Params["charset"]; !ok {
		mc.Params["charset"] = "utf8mb4"
	}
	return mc.FormatDSN(), nil
}
