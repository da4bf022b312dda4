// Package repo — типизированный доступ к Postgres поверх pgx.
//
// Store владеет пулом соединений и транзакционными скоупами (WithTx);
// репозитории — это наборы SQL-операций над одной таблицей, принимающие
// Querier, которым может быть как пул, так и открытая транзакция.
// Вся арифметика интервалов выполняется на серверном времени
// (make_interval), чтобы перекос клиентских часов не ломал pacing.
package repo
