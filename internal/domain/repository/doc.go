// Package repository define los registros de dominio del motor de credenciales
// y la taxonomía de errores compartida por todas las capas.
//
// Los registros son independientes del almacenamiento subyacente (memoria,
// archivo JSON, JSON-Lines, SQL). Cada tipo se convierte a/desde store.Record
// y vive en una única tabla por backend.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│        credentials.Service (lifecycle)              │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        store.Table (storage port)                   │
//	│  StoreOne, RetrieveOne/Many, UpdateMany, RemoveMany │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	     ┌──────────────┬───┴──────────┬──────────────┐
//	     ▼              ▼              ▼              ▼
//	┌──────────┐  ┌──────────┐  ┌──────────┐  ┌──────────┐
//	│  memory  │  │ jsonfile │  │  jsonl   │  │   sql    │
//	└──────────┘  └──────────┘  └──────────┘  └──────────┘
//
// Convenciones:
//   - Sólo used, revoked y revocation_reason se mutan después de crear un registro.
//   - Los registros se referencian entre sí sólo por clave primaria.
//   - Errores de dominio están en errors.go
package repository
