package repositories

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// isDuplicateKeyError reports whether the error is a MySQL/MariaDB unique
// constraint violation (error 1062). The payments table relies on this to
// turn a concurrent double-insert of the same gateway_reference into the
// idempotent replay path instead of a double credit.
func isDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
