// Package prompt содержит шаблоны промптов с плейсхолдерами вида {name}.
//
// Набор переменных шаблона вычисляется при разборе. По нему шаги
// определяют свои required keys, поэтому синтаксис намеренно простой:
//
//	Title about {topic}
//	Literal braces: {{ and }}
package prompt
