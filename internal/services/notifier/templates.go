package notifier

import "fmt"

// Шаблоны уведомлений по статусам. Любой другой статус хранится молча,
// без сообщения клиенту.
func statusMessage(code, status string) (string, bool) {
	switch status {
	case "out_of_stock":
		return fmt.Sprintf("Ваш товар с трек-кодом <code>%s</code> ещё не прибыл на склад.", code), true
	case "in_stock":
		return fmt.Sprintf("Ваш товар с трек-кодом <code>%s</code> <b>прибыл на склад</b>.", code), true
	case "shipped":
		return fmt.Sprintf("Ваш товар с трек-кодом <code>%s</code> <b>отправлен</b>.", code), true
	case "arrived":
		return fmt.Sprintf("Ваш товар с трек-кодом <code>%s</code> <b>прибыл в пункт выдачи</b>!\n\n"+
			"Пожалуйста, свяжитесь с администратором для получения товара: @fir2201", code), true
	default:
		return "", false
	}
}
