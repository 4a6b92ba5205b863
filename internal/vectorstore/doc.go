// Package vectorstore реализует хранилища векторов для шагов vector-search.
//
// Store хранит документы с эмбеддингами и ищет ближайшие по косинусной
// близости. MemoryStore держит всё в памяти процесса, PgStore использует
// PostgreSQL с расширением pgvector.
package vectorstore
