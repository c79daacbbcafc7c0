// Package dal importa todos los adapters para auto-registro.
// Importar este paquete en main.go para habilitar todos los backends.
//
// Uso:
//
//	import _ "github.com/dropDatabas3/hellojohn-indieauth/internal/store/adapters/dal"
package dal

import (
	_ "github.com/dropDatabas3/hellojohn-indieauth/internal/store/adapters/jsonfile"
	_ "github.com/dropDatabas3/hellojohn-indieauth/internal/store/adapters/jsonl"
	_ "github.com/dropDatabas3/hellojohn-indieauth/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/hellojohn-indieauth/internal/store/adapters/sqldb"
)
