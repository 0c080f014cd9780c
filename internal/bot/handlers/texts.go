package handlers

// User-facing texts. The bot speaks Russian.
const (
	textWelcome = "Добро пожаловать во Вселенную! ✨\n" +
		"Я помогу рассчитать твой персональный астропрогноз.\n" +
		"Давай начнём с твоего имени. Как тебя зовут?"

	textAlreadyRegistered = "Привет, %s! Ты уже зарегистрирован(а). " +
		"Используй /menu, чтобы изменить настройки или узнать статус рефералов."

	textAskBirthDate    = "Укажи дату рождения в формате ДД.ММ.ГГГГ (например, 27.11.1997):"
	textBadBirthDate    = "Пожалуйста, введи дату в формате ДД.ММ.ГГГГ."
	textAskBirthTime    = "Укажи время рождения (часы и минуты, например, 18:25):"
	textBadBirthTime    = "Пожалуйста, введи время в формате ЧЧ:ММ."
	textAskBirthPlace   = "Укажи место рождения (город, страна):"
	textBadBirthPlace   = "Пожалуйста, напиши место рождения текстом."
	textBadName         = "Пожалуйста, напиши своё имя текстом."
	textAskMessageTime  = "В какое время присылать тебе ежедневное сообщение? (ЧЧ:ММ, например, 10:05)"
	textBadMessageTime  = "Введите время в формате ЧЧ:ММ, например 08:30."
	textFirstForecast   = "Твой первый астропрогноз:\n\n"
	textReferralLink    = "Твоя реферальная ссылка: %s\nПоделись ею с друзьями и получай бонусные баллы!"
	textRegistrationSum = "Спасибо! Вот твои данные:\n\n" +
		"Имя: %s\n" +
		"Дата рождения: %s\n" +
		"Место рождения: %s\n" +
		"Время рождения: %s\n" +
		"Время сообщения: %s\n\n" +
		"Нажми кнопку ниже, чтобы поговорить со Вселенной!"

	textNotRegistered = "Ты ещё не зарегистрирован(а). Используй /start, чтобы начать."
	textChooseAction  = "Выбери действие:"
	textAskNewName    = "Какое имя вписать?"
	textAskNewTime    = "Введи новое время для ежедневного сообщения (ЧЧ:ММ):"
	textNameUpdated   = "Имя успешно обновлено!"
	textTimeUpdated   = "Время сообщения обновлено!"
	textRefStatus     = "Приглашено друзей: %d\nБонусные баллы: %d\nТвоя реферальная ссылка: %s"

	textPaymentThanks = "Спасибо за вашу оплату! Ваша подписка активирована на %d дней. Приятного чтения!"

	textNoBroadcastRights = "У тебя нет прав для этой команды."
	textBroadcastUsage    = "Использование: /broadcast ваше сообщение"
	textBroadcastDone     = "Сообщение отправлено %d пользователям."

	textCancelled     = "Хорошо, диалог прерван. Используй /start или /menu, когда будешь готов(а)."
	textNothingToStop = "Сейчас нечего отменять."

	textInternalError = "Произошла ошибка. Попробуйте позже"
)
