// don — операторский CLI системы рассылки.
//
// Команды:
//
//	start            Запустить супервизор для группы
//	status           Срез состояния задач и профилей
//	stop             Остановить работающий супервизор
//	migrate          Применить миграции схемы
//	import-chats     Импорт чатов группы
//	import-messages  Импорт шаблонов сообщений
//	profiles         Управление профилями
//	proxies          Управление пулом прокси
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Stepan2222000/don/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	// .env для DB_URL / RABBITMQ_URL / LOG_LEVEL; отсутствие файла — норма.
	_ = godotenv.Load()

	rootCmd := cli.NewRootCmd(version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
